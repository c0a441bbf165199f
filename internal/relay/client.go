package relay

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// 读上限是传输层的内存保护，应用层的 1009 关闭由 Screen 判断
const readLimitFactor = 4

// Client 基于 gorilla/websocket 的 Peer 实现
type Client struct {
	id     string
	addr   string
	hub    *Hub
	ws     *websocket.Conn
	screen *Screen
	limits Limits
	logger *slog.Logger

	send      chan []byte
	ping      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient 包装一条已升级的连接
func NewClient(id, addr string, ws *websocket.Conn, hub *Hub) *Client {
	limits := hub.Limits()
	return &Client{
		id:     id,
		addr:   addr,
		hub:    hub,
		ws:     ws,
		screen: NewScreen(limits, time.Now()),
		limits: limits,
		logger: hub.Logger().With("peer_id", id),
		send:   make(chan []byte, limits.SendBuffer),
		ping:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (c *Client) ID() string   { return c.id }
func (c *Client) Addr() string { return c.addr }

// Send 入队一条文本消息，不阻塞
func (c *Client) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrPeerClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Ping 请求写协程发送一次 ping，已有待发的 ping 时合并
func (c *Client) Ping() error {
	select {
	case <-c.done:
		return ErrPeerClosed
	case c.ping <- struct{}{}:
	default:
	}
	return nil
}

// Terminate 不发送关闭帧直接断开
func (c *Client) Terminate() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// closeWith 发送关闭帧后断开
func (c *Client) closeWith(code int) {
	deadline := time.Now().Add(c.limits.WriteWait)
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), deadline)
	c.Terminate()
}

// Run 启动写协程并在当前协程读取，直到连接结束
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c.id)
		c.Terminate()
	}()

	c.ws.SetReadLimit(int64(c.limits.MaxMessageBytes) * readLimitFactor)
	c.ws.SetPongHandler(func(string) error {
		c.hub.Pong(c.id)
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket 读取错误", "error", err)
			}
			return
		}

		msg, err := c.screen.Check(time.Now(), data)
		switch {
		case errors.Is(err, ErrMessageTooBig):
			c.logger.Info("消息过大，关闭连接", "size", len(data))
			c.closeWith(websocket.CloseMessageTooBig)
			return
		case err != nil:
			c.hub.Metrics().drop(err)
			c.logger.Debug("丢弃入站消息", "reason", err)
			continue
		}
		c.hub.Deliver(c.id, msg)
	}
}

func (c *Client) writePump() {
	defer c.Terminate()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(c.limits.WriteWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("发送消息失败", "error", err)
				return
			}
		case <-c.ping:
			if err := c.ws.SetWriteDeadline(time.Now().Add(c.limits.WriteWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
