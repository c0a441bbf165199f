package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cudisync/internal/api/handler"
	"cudisync/internal/config"
	"cudisync/internal/middleware"
	"cudisync/internal/relay"
)

// SetupRouter 初始化 Gin 路由；gatherer 为空时不挂载 /metrics
func SetupRouter(hub *relay.Hub, srvCfg config.Server, logger *slog.Logger, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(logger))
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(srvCfg.Origins()))

	wsHandler := handler.NewWsHandler(hub, srvCfg.Origins())
	statsHandler := handler.NewStatsHandler(hub)

	// 根路径同时承担 WebSocket 入口与健康检查
	r.GET("/", func(c *gin.Context) {
		if handler.IsUpgrade(c) {
			wsHandler.Handle(c)
			return
		}
		statsHandler.Health(c)
	})
	r.GET("/ws", wsHandler.Handle)
	r.GET("/health", statsHandler.Health)
	r.GET("/stats", statsHandler.Stats)

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return r
}
