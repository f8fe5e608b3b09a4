package xpolicy

import "time"

// Reason 轮转原因
type Reason int

// 轮转原因常量
const (
	// ReasonNone 不需要轮转
	ReasonNone Reason = iota
	// ReasonSize 文件大小达到上限
	ReasonSize
	// ReasonDate 跨越日期边界
	ReasonDate
	// ReasonManual 调用方显式要求
	ReasonManual
)

// String 返回原因名称，用于诊断输出和指标属性
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonSize:
		return "size"
	case ReasonDate:
		return "date"
	case ReasonManual:
		return "manual"
	default:
		return "unknown"
	}
}

// Roll 报告是否需要轮转
func (r Reason) Roll() bool {
	return r != ReasonNone
}

// State 一次决策所需的观测值
//
// Size 是"假设本次写入已落盘"后的字节数，LastRoll 是上次轮转（或打开文件）的时间。
type State struct {
	Size     int64
	LastRoll time.Time
	Now      time.Time
}

// Policy 轮转决策
//
// 实现必须是无副作用的纯函数，可被多个写入器共享。
type Policy interface {
	ShouldRoll(s State) Reason
}

// ShouldRollBySize 当 max > 0 且 current >= max 时返回 true
func ShouldRollBySize(current, max int64) bool {
	return max > 0 && current >= max
}

// ShouldRollByDate 当 now 与 last 在 pattern 下的格式化结果不同时返回 true
//
// 时钟回拨同样视为跨越边界：只比较格式化值，不比较先后。
// last 为零值时不轮转（尚未建立基准）。
func ShouldRollByDate(last, now time.Time, p DatePattern) bool {
	if last.IsZero() || p.IsZero() {
		return false
	}
	return p.Format(last) != p.Format(now)
}

// sizePolicy 按大小轮转
type sizePolicy struct {
	max int64
}

// Size 返回按大小轮转的策略，max <= 0 表示不限制
func Size(max int64) Policy {
	return sizePolicy{max: max}
}

func (p sizePolicy) ShouldRoll(s State) Reason {
	if ShouldRollBySize(s.Size, p.max) {
		return ReasonSize
	}
	return ReasonNone
}

// datePolicy 按日期轮转
type datePolicy struct {
	pattern DatePattern
}

// Date 返回按日期边界轮转的策略
func Date(p DatePattern) Policy {
	return datePolicy{pattern: p}
}

func (p datePolicy) ShouldRoll(s State) Reason {
	if ShouldRollByDate(s.LastRoll, s.Now, p.pattern) {
		return ReasonDate
	}
	return ReasonNone
}

// anyPolicy 组合策略
type anyPolicy []Policy

// Any 组合多个策略，按顺序求值，第一个命中的原因胜出
//
// 每次写入只求值一次，因此不会在同一次写入中重复轮转。
// nil 策略被忽略；全部为 nil 时返回永不轮转的策略。
func Any(policies ...Policy) Policy {
	out := make(anyPolicy, 0, len(policies))
	for _, p := range policies {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (a anyPolicy) ShouldRoll(s State) Reason {
	for _, p := range a {
		if r := p.ShouldRoll(s); r.Roll() {
			return r
		}
	}
	return ReasonNone
}

// Never 永不轮转的策略
func Never() Policy {
	return anyPolicy(nil)
}
