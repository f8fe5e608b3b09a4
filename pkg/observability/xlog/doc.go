// Package xlog 提供按分类路由的结构化日志门面。
//
// 应用通过 [Facility] 获取分类 Logger，事件经 [Handler]（slog.Handler 实现）
// 转换为 xevent.Event，分发到分类绑定的所有输出端（xappender）。
//
// 分类层级：
//
//	categories:
//	  default: { appenders: [app], level: info }
//	  db:      { appenders: [db],  level: debug }
//
// "db.query" 未配置时继承 "db"，"http" 继承 "default"。级别与输出端分别取
// 最近的已配置祖先；[Facility.SetLevel] 运行时覆盖的级别同样向下继承。
//
// 基本用法：
//
//	f, err := xlog.New().
//		AddAppender("app", xappender.Options{Type: "file", Filename: "logs/app.log", MaxLogSize: "10M"}).
//		SetCategory("default", "info", "app").
//		Build()
//	if err != nil {
//		return err
//	}
//	defer f.Shutdown(context.Background())
//
//	log := f.Logger("db.query")
//	log.Info(ctx, "connected", slog.String("host", "db1"))
//
// 日志调用永不返回错误也不 panic；内部错误经 SetOnError 回调与 xdiag 诊断通道上报。
package xlog
