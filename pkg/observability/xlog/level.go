package xlog

import "github.com/omeyang/xlogkit/pkg/logging/xevent"

// Level 日志级别，与 slog.Level 数值兼容
type Level = xevent.Level

// 预定义级别
const (
	LevelTrace = xevent.LevelTrace
	LevelDebug = xevent.LevelDebug
	LevelInfo  = xevent.LevelInfo
	LevelWarn  = xevent.LevelWarn
	LevelError = xevent.LevelError
	LevelFatal = xevent.LevelFatal
)

// ParseLevel 解析级别字符串（不区分大小写）
func ParseLevel(s string) (Level, error) {
	return xevent.ParseLevel(s)
}
