// Package xlayout 提供日志事件到文本行的布局函数。
//
// 布局是纯函数 func(xevent.Event) string，由输出端在写入前调用。
// 内置三种布局：
//   - Basic: [时间] [级别] 分类 - 消息 k=v
//   - JSON: 单行 JSON（goccy/go-json 编码）
//   - MessagePass: 只输出消息
//
// 布局函数 panic 时 [Render] 返回 [*FormattingError]，调用方丢弃该行并上报诊断通道，
// 管线其余部分不受影响。
package xlayout
