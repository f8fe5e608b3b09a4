package xregistry

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// ScheduleRotate 按 cron 表达式定时轮转所有写入器
//
// 使用标准 5 字段表达式（分 时 日 月 周）及 @daily、@every 1h 等描述符。
// 返回的 stop 停止调度并等待进行中的轮转结束。
//
//	stop, err := reg.ScheduleRotate("0 0 * * *")
//	defer stop()
func (r *Registry) ScheduleRotate(spec string) (stop func(), err error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if err := r.Rotate(); err != nil {
			r.diag.Error("scheduled rotate", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("xregistry: schedule %q: %w", spec, err)
	}
	c.Start()
	return func() { <-c.Stop().Done() }, nil
}
