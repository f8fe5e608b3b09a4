package xregistry

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
)

// WatchSignals 收到信号时重新打开所有写入器，阻塞直到 ctx 结束
//
// 未指定信号时使用平台默认（unix 为 SIGHUP，其他平台无默认信号，直接等待 ctx）。
//
//	go reg.WatchSignals(ctx)
func (r *Registry) WatchSignals(ctx context.Context, sigs ...os.Signal) error {
	if len(sigs) == 0 {
		sigs = defaultReopenSignals()
	}
	if len(sigs) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-ch:
			if err := r.Reopen(); err != nil {
				r.diag.Error("reopen on signal", err)
				continue
			}
			r.diag.Info("reopened log files", slog.String("signal", sig.String()))
		}
	}
}
