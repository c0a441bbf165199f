package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cudisync/internal/relay"
)

const ServiceName = "cudisync"

type StatsHandler struct {
	hub *relay.Hub
}

func NewStatsHandler(hub *relay.Hub) *StatsHandler {
	return &StatsHandler{hub: hub}
}

// Health 存活检查
func (h *StatsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "service": ServiceName})
}

// Stats 当前房间数与连接数
func (h *StatsHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.hub.Stats())
}
