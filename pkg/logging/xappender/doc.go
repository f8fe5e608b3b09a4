// Package xappender 提供日志输出端的配置与实现。
//
// 输出端接收事件，经布局渲染为一行文本后写入目标：
//   - [FileAppender]: 单个滚动文件（file、dateFile、lumberjack）
//   - [MultiFileAppender]: 按事件属性或分类路由到多个文件，空闲自动关闭
//   - [ConsoleAppender]: 标准输出或标准错误
//
// [Configure] 由 [Options]（可直接从配置文件解码）创建输出端，配置错误
// 包装 [ErrConfiguration] 且在打开任何文件前返回。
//
// 输出端的 Write 永不返回错误也不 panic，布局失败、写入失败都经 xdiag 诊断通道上报，
// 只丢弃对应的那一条事件。
package xappender
