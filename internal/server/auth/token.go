package auth

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// GenerateSessionToken 生成房间会话令牌（十六进制编码）
func GenerateSessionToken(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = DefaultSessionTokenBytes
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewConnectionID 为新接入的连接分配 ID
func NewConnectionID() string {
	return uuid.NewString()
}
