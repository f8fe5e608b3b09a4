package xrotate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// dirPerm 自动创建父目录的权限
const dirPerm os.FileMode = 0o750

// sanitizePath 检查并规范化日志文件路径
//
//   - 拒绝空字节、以分隔符结尾（目录）、仅有目录的路径
//   - 按路径段拒绝 ".."（不误伤 "app..2024.log" 这类合法文件名）
func sanitizePath(filename string) (string, error) {
	if filename == "" {
		return "", ErrEmptyFilename
	}
	if strings.IndexByte(filename, 0) >= 0 {
		return "", fmt.Errorf("%w: filename contains null byte", ErrInvalidPath)
	}
	// Clean 会移除尾部斜杠，必须先检查
	if strings.HasSuffix(filename, "/") || strings.HasSuffix(filename, `\`) {
		return "", fmt.Errorf("%w: path is a directory", ErrInvalidPath)
	}

	cleaned := filepath.Clean(filename)
	if hasDotDotSegment(cleaned) {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, filename)
	}

	base := filepath.Base(cleaned)
	if base == "." || base == string(filepath.Separator) {
		return "", fmt.Errorf("%w: no file name specified", ErrInvalidPath)
	}
	if info, err := os.Stat(cleaned); err == nil && info.IsDir() {
		return "", fmt.Errorf("%w: %q is a directory", ErrInvalidPath, cleaned)
	}
	return cleaned, nil
}

func hasDotDotSegment(path string) bool {
	for _, seg := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return true
		}
	}
	return false
}

// ensureDir 确保文件的父目录存在
func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, dirPerm)
}
