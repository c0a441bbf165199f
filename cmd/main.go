package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"cudisync/internal/api"
	"cudisync/internal/config"
	"cudisync/internal/relay"
	"cudisync/internal/server/auth"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// .env 可选
	_ = godotenv.Load()

	// 加载配置
	cfg, err := config.LoadDefault()
	if err != nil {
		slog.Error("加载配置失败", "error", err)
		os.Exit(1)
	}

	logger := cfg.Log.NewLogger(os.Stdout)
	slog.SetDefault(logger)
	if cfg.Log.SlogLevel() != slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	authCfg := cfg.Auth.ToSettings()
	limits := cfg.Relay.ToLimits()
	hub := relay.NewHub(relay.Options{
		Limits: limits,
		Hasher: auth.NewBcryptHasher(authCfg.BcryptCost),
		TokenSource: func() (string, error) {
			return auth.GenerateSessionToken(authCfg.SessionTokenBytes)
		},
		Logger:  logger,
		Metrics: relay.NewMetrics(reg),
	})

	r := api.SetupRouter(hub, cfg.Server, logger, reg)

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("HTTP 服务器已启动", "addr", srv.Addr,
			"max_room_clients", limits.MaxRoomClients,
			"max_conns_per_ip", limits.MaxConnsPerAddr,
			"app_type", limits.AppType)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP 服务器异常退出", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("正在关闭服务")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP 服务器关闭失败", "error", err)
	}
	// 已劫持的 WebSocket 连接不受 Shutdown 管理，由 Hub 断开
	hub.Stop()
	logger.Info("服务已退出")
}
