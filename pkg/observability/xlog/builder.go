package xlog

import (
	"errors"
	"fmt"
	"io"
	"maps"

	"github.com/omeyang/xlogkit/pkg/logging/xappender"
	"github.com/omeyang/xlogkit/pkg/logging/xdiag"
	"github.com/omeyang/xlogkit/pkg/logging/xregistry"
	"github.com/omeyang/xlogkit/pkg/observability/xmetrics"
)

// Builder 日志门面构建器
//
// 未设置任何输出端与分类时使用 [DefaultConfig]（stdout，info）。
type Builder struct {
	cfg         Config
	addSource   bool
	extract     ContextExtractor
	replaceAttr ReplaceAttrFunc
	onError     func(error)
	diag        *xdiag.Channel
	recorder    xmetrics.Recorder
	registry    *xregistry.Registry
	stdout      io.Writer
	stderr      io.Writer
	err         error
}

// New 创建构建器
func New() *Builder {
	return &Builder{
		cfg: Config{
			Appenders:  map[string]xappender.Options{},
			Categories: map[string]CategoryConfig{},
		},
	}
}

// SetConfig 使用完整配置（覆盖之前的 AddAppender/SetCategory）
func (b *Builder) SetConfig(cfg Config) *Builder {
	b.cfg = Config{
		Appenders:  maps.Clone(cfg.Appenders),
		Categories: maps.Clone(cfg.Categories),
	}
	if b.cfg.Appenders == nil {
		b.cfg.Appenders = map[string]xappender.Options{}
	}
	if b.cfg.Categories == nil {
		b.cfg.Categories = map[string]CategoryConfig{}
	}
	return b
}

// AddAppender 添加命名输出端
func (b *Builder) AddAppender(name string, opts xappender.Options) *Builder {
	if name == "" {
		b.err = errors.Join(b.err, fmt.Errorf("%w: empty appender name", ErrInvalidConfig))
		return b
	}
	b.cfg.Appenders[name] = opts
	return b
}

// SetCategory 配置分类的级别与输出端
func (b *Builder) SetCategory(name, level string, appenders ...string) *Builder {
	b.cfg.Categories[name] = CategoryConfig{Appenders: appenders, Level: level}
	return b
}

// SetAddSource 是否为所有分类记录调用位置
func (b *Builder) SetAddSource(enable bool) *Builder {
	b.addSource = enable
	return b
}

// SetEnrich 设置 context 属性提取函数
//
//	xlog.New().SetEnrich(func(ctx context.Context) []slog.Attr {
//	    if id, ok := ctx.Value(requestIDKey{}).(string); ok {
//	        return []slog.Attr{slog.String("request_id", id)}
//	    }
//	    return nil
//	})
func (b *Builder) SetEnrich(fn ContextExtractor) *Builder {
	b.extract = fn
	return b
}

// SetReplaceAttr 设置属性替换函数（日志治理）
//
//	xlog.New().SetReplaceAttr(func(groups []string, a slog.Attr) slog.Attr {
//	    if a.Key == "password" {
//	        return slog.String(a.Key, "***")
//	    }
//	    return a
//	})
func (b *Builder) SetReplaceAttr(fn ReplaceAttrFunc) *Builder {
	b.replaceAttr = fn
	return b
}

// SetOnError 设置内部错误回调
//
// 回调在热路径同步执行，应保持轻量。内置递归保护与 panic 隔离。
func (b *Builder) SetOnError(fn func(error)) *Builder {
	b.onError = fn
	return b
}

// SetDiag 设置诊断通道（输出端的 IO 错误、格式化失败等）
func (b *Builder) SetDiag(ch *xdiag.Channel) *Builder {
	b.diag = ch
	return b
}

// SetRecorder 设置轮转与写入指标记录
func (b *Builder) SetRecorder(r xmetrics.Recorder) *Builder {
	b.recorder = r
	return b
}

// SetRegistry 使用外部注册表（多个门面共享路径独占与退出钩子）
func (b *Builder) SetRegistry(r *xregistry.Registry) *Builder {
	b.registry = r
	return b
}

// SetConsole 设置 stdout/stderr 类型输出端的写入目标，nil 为标准输出
func (b *Builder) SetConsole(stdout, stderr io.Writer) *Builder {
	b.stdout, b.stderr = stdout, stderr
	return b
}

// Build 校验配置并创建所有输出端
//
// 配置错误时已创建的输出端会被关闭。
func (b *Builder) Build() (*Facility, error) {
	if b.err != nil {
		return nil, b.err
	}
	cfg := b.cfg
	if len(cfg.Appenders) == 0 && len(cfg.Categories) == 0 {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	diag := b.diag
	if diag == nil {
		diag = xdiag.New()
	}
	registry := b.registry
	if registry == nil {
		registry = xregistry.Default()
	}
	deps := xappender.Deps{
		Diag:     diag,
		Recorder: b.recorder,
		Registry: registry,
		Stdout:   b.stdout,
		Stderr:   b.stderr,
	}

	st, err := newState(cfg, deps)
	if err != nil {
		return nil, err
	}
	return &Facility{
		deps:        deps,
		registry:    registry,
		extract:     b.extract,
		replaceAttr: b.replaceAttr,
		addSource:   b.addSource,
		onError:     b.onError,
		st:          st,
		overrides:   make(map[string]Level),
	}, nil
}
