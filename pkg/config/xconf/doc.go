// Package xconf 从 YAML/JSON 文件加载日志配置，并在文件变更时热重载到日志门面。
//
// 基于 koanf 实现，配置结构与 xlog.Config 一致：
//
//	appenders:
//	  app:
//	    type: file
//	    filename: logs/app.log
//	    maxLogSize: 10M
//	    backups: 3
//	    compress: true
//	categories:
//	  default: { appenders: [app], level: info }
//	  db.query: { appenders: [app], level: debug }
//
// 分类名含 "."，默认键分隔符为 "/"（见 [DefaultDelim]）。日志配置嵌在应用配置中时
// 使用 [WithPrefix] 指定所在的键。
//
// # 热重载
//
// [Watch] 监视配置文件所在目录（兼容 vim/emacs 原子写入），内置防抖。
// 文件解析或校验失败时保留当前配置，通过 [WithOnReload] 回调报告错误。
// Stop() 返回后监视循环已退出，在回调中调用 Stop() 不会死锁。
package xconf
