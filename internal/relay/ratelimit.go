package relay

import "time"

// WindowLimiter 单连接的固定窗口计数器
//
// 只被该连接的读协程使用，不加锁。
type WindowLimiter struct {
	max    int
	window time.Duration
	start  time.Time
	count  int
}

// NewWindowLimiter 创建限流器，窗口从 now 开始
func NewWindowLimiter(max int, window time.Duration, now time.Time) *WindowLimiter {
	return &WindowLimiter{max: max, window: window, start: now}
}

// Allow 记录一条消息并返回是否放行
func (l *WindowLimiter) Allow(now time.Time) bool {
	if now.Sub(l.start) > l.window {
		l.start = now
		l.count = 0
	}
	l.count++
	return l.count <= l.max
}
