package xappender

import "errors"

var (
	// ErrConfiguration 输出端配置无效，输出端未创建
	ErrConfiguration = errors.New("xappender: invalid configuration")
)
