package xconf

// DefaultDelim 默认键分隔符
//
// 设计决策: 分类名本身含 "."（"db.query"），使用 "." 作分隔符会把分类拆成嵌套结构，
// 因此默认使用 "/"。
const DefaultDelim = "/"

// Options 定义配置加载选项。
type Options struct {
	// Delim 配置键的分隔符，默认为 "/"。
	Delim string

	// Tag 结构体标签名，用于 Unmarshal，默认为 "koanf"。
	Tag string

	// Prefix 日志配置所在的键，空值表示整个文档。
	// 例如日志配置位于应用配置的 log 节下时设置为 "log"。
	Prefix string
}

// Option 定义配置选项函数类型。
type Option func(*Options)

// defaultOptions 返回默认配置选项。
func defaultOptions() *Options {
	return &Options{
		Delim: DefaultDelim,
		Tag:   "koanf",
	}
}

// WithDelim 设置配置键分隔符，空值被忽略。
func WithDelim(delim string) Option {
	return func(o *Options) {
		if delim != "" {
			o.Delim = delim
		}
	}
}

// WithTag 设置结构体标签名，空值被忽略。
func WithTag(tag string) Option {
	return func(o *Options) {
		if tag != "" {
			o.Tag = tag
		}
	}
}

// WithPrefix 设置日志配置所在的键。
func WithPrefix(prefix string) Option {
	return func(o *Options) {
		o.Prefix = prefix
	}
}
