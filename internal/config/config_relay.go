package config

import (
	"strings"
	"time"

	"cudisync/internal/relay"
)

// Relay 中继限制（从 YAML 读取的原始结构）
type Relay struct {
	MaxRoomClients    int    `yaml:"max_room_clients" json:"max_room_clients"`
	MaxConnsPerIP     int    `yaml:"max_conns_per_ip" json:"max_conns_per_ip"`
	MaxMessageBytes   int    `yaml:"max_message_bytes" json:"max_message_bytes"`
	RateLimit         int    `yaml:"rate_limit" json:"rate_limit"`
	RateWindow        string `yaml:"rate_window" json:"rate_window"`
	HeartbeatInterval string `yaml:"heartbeat_interval" json:"heartbeat_interval"`
	WriteWait         string `yaml:"write_wait" json:"write_wait"`
	SendBuffer        int    `yaml:"send_buffer" json:"send_buffer"`
	AppType           string `yaml:"app_type" json:"app_type"`
}

// ToLimits 解析时长字符串，未设置或非法的项使用默认值
func (r Relay) ToLimits() relay.Limits {
	l := relay.Limits{
		MaxRoomClients:    r.MaxRoomClients,
		MaxConnsPerAddr:   r.MaxConnsPerIP,
		MaxMessageBytes:   r.MaxMessageBytes,
		RateLimit:         r.RateLimit,
		RateWindow:        parseDuration(r.RateWindow, relay.DefaultRateWindow),
		HeartbeatInterval: parseDuration(r.HeartbeatInterval, relay.DefaultHeartbeatInterval),
		WriteWait:         parseDuration(r.WriteWait, relay.DefaultWriteWait),
		SendBuffer:        r.SendBuffer,
		AppType:           strings.TrimSpace(r.AppType),
	}
	defaults := relay.DefaultLimits()
	if l.MaxRoomClients <= 0 {
		l.MaxRoomClients = defaults.MaxRoomClients
	}
	if l.MaxConnsPerAddr <= 0 {
		l.MaxConnsPerAddr = defaults.MaxConnsPerAddr
	}
	if l.MaxMessageBytes <= 0 {
		l.MaxMessageBytes = defaults.MaxMessageBytes
	}
	if l.RateLimit <= 0 {
		l.RateLimit = defaults.RateLimit
	}
	if l.SendBuffer <= 0 {
		l.SendBuffer = defaults.SendBuffer
	}
	if l.AppType == "" {
		l.AppType = defaults.AppType
	}
	return l
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}
