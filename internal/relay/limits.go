package relay

import "time"

const (
	DefaultMaxRoomClients    = 15
	DefaultMaxConnsPerAddr   = 20
	DefaultMaxMessageBytes   = 64 * 1024
	DefaultRateLimit         = 50
	DefaultRateWindow        = time.Second
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultWriteWait         = 10 * time.Second
	DefaultSendBuffer        = 256
	DefaultAppType           = "cudi-sync"
	DefaultAlias             = "Jugador"
)

// Limits 中继服务的运行时限制
type Limits struct {
	MaxRoomClients    int           // 单个房间最大成员数（含房主）
	MaxConnsPerAddr   int           // 同一来源地址的最大并发连接数
	MaxMessageBytes   int           // 单条入站消息最大字节数
	RateLimit         int           // 每个窗口内允许的消息数
	RateWindow        time.Duration // 限流窗口
	HeartbeatInterval time.Duration // 心跳巡检周期
	WriteWait         time.Duration // 单次写超时
	SendBuffer        int           // 每个连接的发送队列长度
	AppType           string        // 只处理携带该 appType 的消息
}

// DefaultLimits 返回默认限制
func DefaultLimits() Limits {
	return Limits{}.withDefaults()
}

func (l Limits) withDefaults() Limits {
	if l.MaxRoomClients <= 0 {
		l.MaxRoomClients = DefaultMaxRoomClients
	}
	if l.MaxConnsPerAddr <= 0 {
		l.MaxConnsPerAddr = DefaultMaxConnsPerAddr
	}
	if l.MaxMessageBytes <= 0 {
		l.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if l.RateLimit <= 0 {
		l.RateLimit = DefaultRateLimit
	}
	if l.RateWindow <= 0 {
		l.RateWindow = DefaultRateWindow
	}
	if l.HeartbeatInterval <= 0 {
		l.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if l.WriteWait <= 0 {
		l.WriteWait = DefaultWriteWait
	}
	if l.SendBuffer <= 0 {
		l.SendBuffer = DefaultSendBuffer
	}
	if l.AppType == "" {
		l.AppType = DefaultAppType
	}
	return l
}
