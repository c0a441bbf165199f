package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

var ErrRateLimited = errors.New("rate_limited")
var ErrMessageTooBig = errors.New("message_too_big")
var ErrMalformed = errors.New("malformed_message")
var ErrForeignApp = errors.New("foreign_app_type")

const (
	TypeJoin        = "join"
	TypeSignal      = "signal"
	TypeRoomCreated = "room_created"
	TypeJoined      = "joined"
	TypeError       = "error"
	TypePlayerJoin  = "player_joined"
	TypePlayerLeft  = "player_left"
	TypeRoomClosed  = "room_closed"
)

// Message 入站消息：JoinMessage、SignalMessage 或 UnknownMessage
type Message interface {
	Kind() string
}

// JoinMessage 创建或加入房间
type JoinMessage struct {
	Room     string // 为空表示缺失，忽略该消息
	Alias    string // 缺省为 DefaultAlias
	Password string // 为空表示未提供
	Token    bool   // 携带任意真值 token
}

func (JoinMessage) Kind() string { return TypeJoin }

// SignalMessage 需要原样转发的负载
type SignalMessage struct {
	HasTarget bool
	TargetID  string // HasTarget 且 targetId 不是字符串时为空，不会匹配任何成员
	Raw       []byte // 收到的原始字节
}

func (SignalMessage) Kind() string { return TypeSignal }

// UnknownMessage 未识别的类型
type UnknownMessage struct {
	Type string
}

func (m UnknownMessage) Kind() string { return m.Type }

// envelope 入站消息的顶层字段，键名区分大小写，重复的键以最后一个为准
type envelope map[string]json.RawMessage

// Screen 单连接的入站检查：限流、大小、结构、appType
type Screen struct {
	limiter  *WindowLimiter
	maxBytes int
	appType  string
}

func NewScreen(l Limits, now time.Time) *Screen {
	l = l.withDefaults()
	return &Screen{
		limiter:  NewWindowLimiter(l.RateLimit, l.RateWindow, now),
		maxBytes: l.MaxMessageBytes,
		appType:  l.AppType,
	}
}

// Check 依次执行限流、大小检查与解码
//
// ErrMessageTooBig 需要关闭连接，其余错误只丢弃当前消息。
func (s *Screen) Check(now time.Time, data []byte) (Message, error) {
	if !s.limiter.Allow(now) {
		return nil, ErrRateLimited
	}
	if len(data) > s.maxBytes {
		return nil, ErrMessageTooBig
	}
	return Decode(data, s.appType)
}

// Decode 解析信封并转换为具体消息
func Decode(data []byte, appType string) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, ErrMalformed
	}
	if app, ok := asString(env["appType"]); !ok || app != appType {
		return nil, ErrForeignApp
	}
	typ, _ := asString(env["type"])
	switch typ {
	case TypeJoin:
		m := JoinMessage{Alias: DefaultAlias, Token: truthy(env["token"])}
		if room, ok := asString(env["room"]); ok {
			m.Room = room
		}
		if alias, ok := asString(env["alias"]); ok && alias != "" {
			m.Alias = alias
		}
		if pw, ok := asString(env["password"]); ok {
			m.Password = pw
		}
		return m, nil
	case TypeSignal:
		m := SignalMessage{Raw: data, HasTarget: truthy(env["targetId"])}
		if m.HasTarget {
			m.TargetID, _ = asString(env["targetId"])
		}
		return m, nil
	default:
		return UnknownMessage{Type: typ}, nil
	}
}

func asString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// truthy 按 JSON 值判断真假：缺失、null、false、0、"" 为假
func truthy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	switch raw[0] {
	case 'n', 'f':
		return false
	case 't', '{', '[':
		return true
	case '"':
		return len(raw) > 2
	default:
		f, err := strconv.ParseFloat(string(raw), 64)
		return err == nil && f != 0
	}
}

type outbound struct {
	AppType string `json:"appType"`
	Type    string `json:"type"`
	Room    string `json:"room,omitempty"`
	PeerID  string `json:"peerId,omitempty"`
	Alias   string `json:"alias,omitempty"`
	Message string `json:"message,omitempty"`
}

func marshal(m outbound) []byte {
	b, _ := json.Marshal(m)
	return b
}
