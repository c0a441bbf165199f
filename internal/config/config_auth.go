package config

import "cudisync/internal/server/auth"

// Auth 房间密码与会话令牌配置（从 YAML 读取的原始结构）
type Auth struct {
	BcryptCost        int `yaml:"bcrypt_cost" json:"bcrypt_cost"`
	SessionTokenBytes int `yaml:"session_token_bytes" json:"session_token_bytes"`
}

// AuthSettings 运行时使用的认证配置
type AuthSettings struct {
	BcryptCost        int
	SessionTokenBytes int
}

// ToSettings 应用默认值
func (a Auth) ToSettings() AuthSettings {
	cost := a.BcryptCost
	if cost <= 0 {
		cost = auth.DefaultBcryptCost
	}
	n := a.SessionTokenBytes
	if n <= 0 {
		n = auth.DefaultSessionTokenBytes
	}
	return AuthSettings{BcryptCost: cost, SessionTokenBytes: n}
}
