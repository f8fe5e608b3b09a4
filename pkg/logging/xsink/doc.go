// Package xsink 提供带背压的缓冲写入。
//
// [Sink] 把逻辑写入与底层 [Handle] 的就绪状态解耦：
//
//   - Write 复制数据入队并尝试排空
//   - 句柄报告 flushed=false（背压）时停止排空，等待 [Sink.OnReady]
//   - 句柄出错时未写出部分留在队首，错误交给观察者，数据不丢失
//   - Close(true, done) 排空后关闭，done 恰好调用一次
//
// 文件句柄使用 [NewFileHandle]，它永远不产生背压。
package xsink
