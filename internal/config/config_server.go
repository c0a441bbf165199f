package config

import (
	"net"
	"os"
	"strconv"
	"strings"
)

const DefaultPort = 8080

// Server HTTP 监听配置
type Server struct {
	Port           int      `yaml:"port" json:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
}

// ListenAddr 监听地址；环境变量 PORT 优先于配置文件
func (s Server) ListenAddr() string {
	port := s.Port
	if p := strings.TrimSpace(os.Getenv("PORT")); p != "" {
		if n, err := strconv.Atoi(p); err == nil && n > 0 {
			port = n
		}
	}
	if port <= 0 {
		port = DefaultPort
	}
	return net.JoinHostPort("", strconv.Itoa(port))
}

// Origins 去除空白项后的允许来源，为空表示不限制
func (s Server) Origins() []string {
	out := make([]string, 0, len(s.AllowedOrigins))
	for _, o := range s.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
