package xlog

import "errors"

var (
	// ErrInvalidConfig 日志门面配置无效
	ErrInvalidConfig = errors.New("xlog: invalid config")

	// ErrShutdown 门面已关闭，事件被丢弃
	ErrShutdown = errors.New("xlog: facility is shut down")
)
