package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS origins 为空时允许所有来源，WebSocket 升级请求同样适用
func CORS(origins []string) gin.HandlerFunc {
	config := cors.DefaultConfig()
	if len(origins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}
	config.AllowWebSockets = true
	config.MaxAge = 12 * time.Hour
	return cors.New(config)
}
