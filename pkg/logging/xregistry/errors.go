package xregistry

import "errors"

var (
	// ErrPathInUse 路径已被另一个写入器占用
	ErrPathInUse = errors.New("xregistry: path already registered")

	// ErrShutdownPending 关闭未在期限内完成
	ErrShutdownPending = errors.New("xregistry: shutdown pending")

	// ErrNilCloser 注册的写入器为 nil
	ErrNilCloser = errors.New("xregistry: closer is nil")

	// ErrEmptyPath 注册路径为空
	ErrEmptyPath = errors.New("xregistry: path is empty")
)
