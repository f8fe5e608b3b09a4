package xconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/omeyang/xlogkit/pkg/observability/xlog"
)

// Format 定义配置文件格式。
type Format string

// 支持的配置格式。
const (
	// FormatYAML YAML 格式（推荐用于 K8s ConfigMap）。
	FormatYAML Format = "yaml"

	// FormatJSON JSON 格式。
	FormatJSON Format = "json"
)

// Source 日志配置来源（文件或字节数据）
type Source struct {
	mu      sync.RWMutex
	k       *koanf.Koanf
	path    string
	format  Format
	opts    *Options
	isBytes bool
}

// New 从文件路径创建配置来源。
// 根据文件扩展名自动检测格式（.yaml/.yml 或 .json）。
func New(path string, opts ...Option) (*Source, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	options := applyOptions(opts)
	k := koanf.New(options.Delim)
	if err := loadData(k, data, format); err != nil {
		return nil, err
	}
	return &Source{k: k, path: path, format: format, opts: options}, nil
}

// NewFromBytes 从字节数据创建配置来源，适用于 K8s ConfigMap 等场景。
//
// 空数据创建空配置，Logging 随后因缺少 default 分类返回校验错误。
func NewFromBytes(data []byte, format Format, opts ...Option) (*Source, error) {
	if !isValidFormat(format) {
		return nil, ErrUnsupportedFormat
	}
	options := applyOptions(opts)
	k := koanf.New(options.Delim)
	if len(data) > 0 {
		if err := loadData(k, data, format); err != nil {
			return nil, err
		}
	}
	return &Source{k: k, format: format, opts: options, isBytes: true}, nil
}

// Load 读取文件并返回校验后的日志配置。
func Load(path string, opts ...Option) (xlog.Config, error) {
	src, err := New(path, opts...)
	if err != nil {
		return xlog.Config{}, err
	}
	return src.Logging()
}

// Client 返回底层的 koanf 实例（快照，Reload 后指向旧配置）。
func (s *Source) Client() *koanf.Koanf {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.k
}

// Unmarshal 将指定路径的配置反序列化到目标结构体，path 为空时反序列化整个配置。
func (s *Source) Unmarshal(path string, target any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.k.UnmarshalWithConf(path, target, koanf.UnmarshalConf{Tag: s.opts.Tag}); err != nil {
		return fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}
	return nil
}

// Logging 反序列化 Prefix 下的日志配置并校验。
func (s *Source) Logging() (xlog.Config, error) {
	var cfg xlog.Config
	if err := s.Unmarshal(s.opts.Prefix, &cfg); err != nil {
		return xlog.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return xlog.Config{}, err
	}
	return cfg, nil
}

// Reload 重新读取配置文件，解析失败时保留旧配置。
func (s *Source) Reload() error {
	if s.isBytes {
		return ErrNotFromFile
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	k := koanf.New(s.opts.Delim)
	if err := loadData(k, data, s.format); err != nil {
		return err
	}

	s.mu.Lock()
	s.k = k
	s.mu.Unlock()
	return nil
}

// Path 返回配置文件路径，从字节数据创建时为空。
func (s *Source) Path() string {
	return s.path
}

// Format 返回配置格式。
func (s *Source) Format() Format {
	return s.format
}

func applyOptions(opts []Option) *Options {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// detectFormat 根据文件扩展名检测配置格式。
func detectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %s", ErrUnsupportedFormat, ext)
	}
}

func isValidFormat(format Format) bool {
	return format == FormatYAML || format == FormatJSON
}

// loadData 加载数据到 koanf 实例。
func loadData(k *koanf.Koanf, data []byte, format Format) error {
	var parser koanf.Parser
	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return ErrUnsupportedFormat
	}
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	return nil
}
