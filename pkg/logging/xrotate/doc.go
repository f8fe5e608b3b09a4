// Package xrotate 提供日志文件轮转。
//
// [Rotator] 接口定义了轮转器的核心行为（Write/Close/Rotate），所有实现并发安全。
//
// # 当前实现
//
//   - [New]: [RollingWriter]，按大小和/或日期轮转，数字或日期后缀备份
//   - [NewLumberjack]: 基于 lumberjack v2，时间戳命名的备份
//
// # 状态机
//
//	OPEN ──写入触发轮转──▶ ROLLING ──新文件就绪，回放队列──▶ OPEN
//	ROLLING ──无法打开新文件──▶ FAILED（写入返回 ErrDegraded）
//	任意状态 ──Close──▶ CLOSED（写入返回 ErrClosed）
//
// # 备份命名
//
//	数字模式: app.log.1 是最新备份，app.log.N 最旧；平移从最高编号开始
//	日期模式: app.log-2024-03-09，同一天多次轮转追加 .1 .2
//	KeepFileExt: app.1.log / app-2024-03-09.log
//	压缩: 后台 gzip，完成后追加 .gz，活动文件从不压缩
//
// # 故障处理
//
// 改名/删除/压缩失败上报诊断通道后继续；打开新文件失败（有限次重试后）
// 写入器降级，队列中的数据计为丢失并上报。Rotate 或 Reopen 可尝试恢复。
//
// # 文件权限
//
// 默认 0600，使用 WithFileMode 调整。父目录自动创建（0750）。
package xrotate
