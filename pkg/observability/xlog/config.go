package xlog

import (
	"fmt"
	"slices"
	"strings"

	"github.com/omeyang/xlogkit/pkg/logging/xappender"
)

// DefaultCategory 默认分类，所有未配置的分类最终回落到它
const DefaultCategory = "default"

// Config 日志门面配置
//
// 结构与配置文件一致（koanf/json 标签）：
//
//	appenders:
//	  app: { type: file, filename: logs/app.log, maxLogSize: 10M, backups: 3 }
//	categories:
//	  default: { appenders: [app], level: info }
//	  db:      { appenders: [app], level: debug }
type Config struct {
	Appenders  map[string]xappender.Options `koanf:"appenders" json:"appenders"`
	Categories map[string]CategoryConfig    `koanf:"categories" json:"categories"`
}

// CategoryConfig 分类配置
type CategoryConfig struct {
	// Appenders 输出端名称列表
	Appenders []string `koanf:"appenders" json:"appenders"`

	// Level 级别名称，空值继承父分类
	Level string `koanf:"level" json:"level"`

	// EnableCallStack 记录调用位置
	EnableCallStack bool `koanf:"enableCallStack" json:"enableCallStack"`
}

// DefaultConfig 输出到 stdout 的最小配置
func DefaultConfig() Config {
	return Config{
		Appenders: map[string]xappender.Options{
			"out": {Type: xappender.TypeStdout},
		},
		Categories: map[string]CategoryConfig{
			DefaultCategory: {Appenders: []string{"out"}, Level: "info"},
		},
	}
}

// Validate 校验配置
//
// 要求存在 default 分类且配置了级别；每个分类至少绑定一个已定义的输出端。
func (c Config) Validate() error {
	def, ok := c.Categories[DefaultCategory]
	if !ok {
		return fmt.Errorf("%w: missing %q category", ErrInvalidConfig, DefaultCategory)
	}
	if def.Level == "" {
		return fmt.Errorf("%w: %q category requires a level", ErrInvalidConfig, DefaultCategory)
	}

	names := make([]string, 0, len(c.Categories))
	for name := range c.Categories {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		cat := c.Categories[name]
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: empty category name", ErrInvalidConfig)
		}
		if len(cat.Appenders) == 0 {
			return fmt.Errorf("%w: category %q has no appenders", ErrInvalidConfig, name)
		}
		for _, a := range cat.Appenders {
			if _, ok := c.Appenders[a]; !ok {
				return fmt.Errorf("%w: category %q references unknown appender %q", ErrInvalidConfig, name, a)
			}
		}
		if cat.Level != "" {
			if _, err := ParseLevel(cat.Level); err != nil {
				return fmt.Errorf("%w: category %q: %w", ErrInvalidConfig, name, err)
			}
		}
	}
	return nil
}

// parent 返回上一级分类名，顶层分类的父级为 default
func parent(category string) string {
	if i := strings.LastIndexByte(category, '.'); i > 0 {
		return category[:i]
	}
	return DefaultCategory
}
