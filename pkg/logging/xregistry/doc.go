// Package xregistry 提供进程级写入器注册表。
//
// 注册表由日志门面持有（非全局变量），负责：
//   - 路径独占：同一文件同一时刻只有一个写入器（[ErrPathInUse]）
//   - 单一退出钩子：首次注册时通过 [HookInstaller]（默认 tebeka/atexit）安装，
//     无论注册多少写入器，钩子只有一个
//   - 并发关闭：[Registry.Shutdown] 用 errgroup 并发关闭，ctx 到期返回 [ErrShutdownPending]
//   - 运维操作：[Registry.Reopen]（SIGHUP）、[Registry.Rotate]、[Registry.ScheduleRotate]
//
// 退出钩子只在 atexit.Exit 时执行；直接 os.Exit 不会触发。
package xregistry
