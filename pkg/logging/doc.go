// Package logging 汇总 xlogkit 的日志输出管线。
//
// 数据流：
//
//	xlog.Logger → xevent.Event → xlayout.Layout → xappender.Appender
//	  → xrotate.RollingWriter → xpolicy.Policy → xsink.Sink → *os.File
//
// 子包：
//   - xevent: 日志事件与级别
//   - xlayout: 事件到文本的布局函数
//   - xsink: 带背压感知的缓冲写入
//   - xpolicy: 轮转判定（大小/日期）
//   - xrotate: 滚动文件写入器
//   - xappender: 输出端配置与入口
//   - xregistry: 进程级写入器注册表（单一退出钩子）
//   - xdiag: 内部诊断通道
package logging
