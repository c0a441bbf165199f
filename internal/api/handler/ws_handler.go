package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"cudisync/internal/relay"
	"cudisync/internal/server/auth"
)

type WsHandler struct {
	hub      *relay.Hub
	upgrader websocket.Upgrader
}

// NewWsHandler origins 为空时接受任意 Origin
func NewWsHandler(hub *relay.Hub, origins []string) *WsHandler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &WsHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin]
			},
		},
	}
}

// Handle 升级连接并交给中继 Hub
//
// 先完成升级再做来源地址限额，超额的连接升级后立即断开。
func (h *WsHandler) Handle(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.hub.Logger().Debug("WebSocket 升级失败", "remote", c.RemoteIP(), "error", err)
		return
	}
	client := relay.NewClient(auth.NewConnectionID(), c.RemoteIP(), ws, h.hub)
	if !h.hub.Register(client) {
		client.Terminate()
		return
	}
	client.Run()
}

// IsUpgrade 请求是否为 WebSocket 升级
func IsUpgrade(c *gin.Context) bool {
	return websocket.IsWebSocketUpgrade(c.Request)
}
