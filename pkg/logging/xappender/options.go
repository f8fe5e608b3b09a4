package xappender

import (
	"fmt"
	"strings"
)

// 输出端类型
const (
	TypeFile       = "file"
	TypeDateFile   = "dateFile"
	TypeLumberjack = "lumberjack"
	TypeMultiFile  = "multiFile"
	TypeConsole    = "console"
	TypeStdout     = "stdout"
	TypeStderr     = "stderr"
)

// 默认值
const (
	// DefaultBackups 未配置 backups 时保留的备份数
	DefaultBackups = 5

	// DefaultDatePattern dateFile 未配置 pattern 时的日期粒度
	DefaultDatePattern = "yyyy-MM-dd"

	// DefaultExtension multiFile 文件扩展名
	DefaultExtension = ".log"

	// DefaultMaxOpenFiles multiFile 同时打开的文件数上限
	DefaultMaxOpenFiles = 256

	// PropertyCategory multiFile 按分类名路由
	PropertyCategory = "categoryName"
)

// Options 输出端配置
//
// 字段同时带 koanf 与 json 标签，可直接由配置文件解码。未知键被忽略。
type Options struct {
	// Type 输出端类型：file、dateFile、lumberjack、multiFile、console、stdout、stderr
	Type string `koanf:"type" json:"type"`

	// Filename 日志文件路径（file/dateFile/lumberjack 必填）
	Filename string `koanf:"filename" json:"filename"`

	// MaxLogSize 单文件大小上限，数字或 "10K"/"5M"/"1G"，见 [ParseSize]
	MaxLogSize any `koanf:"maxLogSize" json:"maxLogSize"`

	// Backups 备份数量，nil 时为 DefaultBackups
	Backups *int `koanf:"backups" json:"backups"`

	// DaysToKeep 备份保留天数（仅 lumberjack）
	DaysToKeep int `koanf:"daysToKeep" json:"daysToKeep"`

	// Pattern 日期粒度，见 xpolicy.ParseDatePattern
	Pattern string `koanf:"pattern" json:"pattern"`

	Compress             bool `koanf:"compress" json:"compress"`
	KeepFileExt          bool `koanf:"keepFileExt" json:"keepFileExt"`
	AlwaysIncludePattern bool `koanf:"alwaysIncludePattern" json:"alwaysIncludePattern"`
	LocalTime            bool `koanf:"localTime" json:"localTime"`

	// Mode 文件权限：整数或八进制字符串 "0644"
	Mode any `koanf:"mode" json:"mode"`

	// Encoding 仅支持 utf-8
	Encoding string `koanf:"encoding" json:"encoding"`

	// Layout 布局名称：basic、json、messagePassThrough
	Layout string `koanf:"layout" json:"layout"`

	// Base multiFile 输出目录
	Base string `koanf:"base" json:"base"`

	// Property multiFile 路由键：事件上下文中的键名，或 "categoryName"
	Property string `koanf:"property" json:"property"`

	// Extension multiFile 文件扩展名，默认 ".log"
	Extension string `koanf:"extension" json:"extension"`

	// Timeout multiFile 空闲关闭时间：毫秒数或 "30s"，0 表示不关闭
	Timeout any `koanf:"timeout" json:"timeout"`

	// MaxOpenFiles multiFile 同时打开的文件数上限，超出时关闭最久未用的
	MaxOpenFiles int `koanf:"maxOpenFiles" json:"maxOpenFiles"`
}

func (o Options) backups() int {
	if o.Backups == nil {
		return DefaultBackups
	}
	return *o.Backups
}

// kind 返回规范化的类型名（小写）
func (o Options) kind() string {
	if o.Type == "" {
		return strings.ToLower(TypeFile)
	}
	return strings.ToLower(o.Type)
}

func checkEncoding(enc string) error {
	switch strings.ToLower(enc) {
	case "", "utf-8", "utf8":
		return nil
	}
	return fmt.Errorf("%w: unsupported encoding %q", ErrConfiguration, enc)
}
