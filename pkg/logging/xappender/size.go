package xappender

import (
	"fmt"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	units "github.com/docker/go-units"
)

// ParseSize 解析大小配置
//
// 接受整数、取整数值的浮点数、数字字符串，以及 K/M/G 后缀（不区分大小写，按 1024 进制）：
//
//	"1K" → 1024, "2M" → 2097152, "3" → 3
//
// nil 与空字符串返回 0（不限制）。负数、小数、其他后缀返回 [ErrConfiguration]。
// 数字与后缀之间允许一个空格；结果超过 2^53 视为溢出。
func ParseSize(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case int:
		return checkSize(int64(x), v)
	case int32:
		return checkSize(int64(x), v)
	case int64:
		return checkSize(x, v)
	case uint:
		return checkUint(uint64(x), v)
	case uint32:
		return checkSize(int64(x), v)
	case uint64:
		return checkUint(x, v)
	case float32:
		return floatSize(float64(x), v)
	case float64:
		return floatSize(x, v)
	case string:
		return parseSizeString(x)
	default:
		return 0, fmt.Errorf("%w: maxLogSize of type %T", ErrConfiguration, v)
	}
}

// sizePattern 整数加可选的单字母 K/M/G 后缀；"1.5K"、"1KB"、"1KiB" 不接受
var sizePattern = regexp.MustCompile(`^(\d+) ?([kKmMgG]?)$`)

// maxSizeDigits 各后缀下允许的数字位数，保证结果不超过 2^53（float64 可精确表示）
var maxSizeDigits = map[string]int{"": 15, "k": 12, "m": 9, "g": 6}

func parseSizeString(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: maxLogSize %q", ErrConfiguration, s)
	}
	if len(strings.TrimLeft(m[1], "0")) > maxSizeDigits[strings.ToLower(m[2])] {
		return 0, fmt.Errorf("%w: maxLogSize %q overflows", ErrConfiguration, s)
	}
	n, err := units.RAMInBytes(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: maxLogSize %q", ErrConfiguration, s)
	}
	return n, nil
}

func floatSize(f float64, v any) (int64, error) {
	if f != math.Trunc(f) || f < 0 || f > math.MaxInt64 {
		return 0, fmt.Errorf("%w: maxLogSize %v", ErrConfiguration, v)
	}
	return int64(f), nil
}

func checkSize(n int64, v any) (int64, error) {
	if n < 0 {
		return 0, fmt.Errorf("%w: maxLogSize %v", ErrConfiguration, v)
	}
	return n, nil
}

func checkUint(n uint64, v any) (int64, error) {
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("%w: maxLogSize %v", ErrConfiguration, v)
	}
	return int64(n), nil
}

// parseMode 解析文件权限：整数按原值，字符串按八进制（"0644"、"644"）
func parseMode(v any) (os.FileMode, error) {
	var m uint64
	switch x := v.(type) {
	case nil:
		return 0, nil
	case int:
		if x < 0 {
			return 0, fmt.Errorf("%w: mode %d", ErrConfiguration, x)
		}
		m = uint64(x)
	case int64:
		if x < 0 {
			return 0, fmt.Errorf("%w: mode %d", ErrConfiguration, x)
		}
		m = uint64(x)
	case float64:
		if x != math.Trunc(x) || x < 0 {
			return 0, fmt.Errorf("%w: mode %v", ErrConfiguration, x)
		}
		m = uint64(x)
	case os.FileMode:
		m = uint64(x)
	case string:
		n, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(x), "0o"), 8, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: mode %q", ErrConfiguration, x)
		}
		m = n
	default:
		return 0, fmt.Errorf("%w: mode of type %T", ErrConfiguration, v)
	}
	if m > 0o777 {
		return 0, fmt.Errorf("%w: mode %o exceeds 0777", ErrConfiguration, m)
	}
	return os.FileMode(m), nil
}

// parseTimeout 解析空闲超时：数字按毫秒，字符串按 time.ParseDuration 或毫秒数
func parseTimeout(v any) (time.Duration, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		if x < 0 {
			return 0, fmt.Errorf("%w: timeout %v", ErrConfiguration, x)
		}
		return x, nil
	case string:
		if x == "" {
			return 0, nil
		}
		if d, err := time.ParseDuration(x); err == nil && d >= 0 {
			return d, nil
		}
	}
	ms, err := ParseSize(v)
	if err != nil {
		return 0, fmt.Errorf("%w: timeout %v", ErrConfiguration, v)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
