// Package xevent 定义日志事件与级别。
//
// Level 与 slog.Level 数值兼容（DEBUG=-4、INFO=0、WARN=4、ERROR=8），
// 额外提供 TRACE(-8) 与 FATAL(12)。Level 实现 encoding.TextMarshaler/TextUnmarshaler，
// 可直接用于配置文件。
//
// Event 构造后不可变，可安全地在多个输出端之间按值传递。
package xevent
