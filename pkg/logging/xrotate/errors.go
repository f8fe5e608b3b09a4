package xrotate

import "errors"

// 配置校验错误
var (
	// ErrEmptyFilename 文件名为空
	ErrEmptyFilename = errors.New("xrotate: filename is required")

	// ErrInvalidPath 路径无效（目录、空文件名、空字节）
	ErrInvalidPath = errors.New("xrotate: invalid path")

	// ErrPathTraversal 路径包含 ".." 段
	ErrPathTraversal = errors.New("xrotate: path traversal")

	// ErrInvalidMaxSize MaxSize 值无效（不能为负，不能超过 10 GiB）
	ErrInvalidMaxSize = errors.New("xrotate: invalid MaxSize")

	// ErrInvalidMaxBackups MaxBackups 值无效（必须在 0~1024 范围内）
	ErrInvalidMaxBackups = errors.New("xrotate: invalid MaxBackups")

	// ErrInvalidMaxAge MaxAgeDays 值无效（必须在 0~3650 范围内）
	ErrInvalidMaxAge = errors.New("xrotate: invalid MaxAgeDays")

	// ErrNoCleanupPolicy MaxBackups 和 MaxAgeDays 不能同时为 0（仅 lumberjack）
	ErrNoCleanupPolicy = errors.New("xrotate: no cleanup policy configured")

	// ErrInvalidFileMode FileMode 包含非权限位（仅允许低 9 位 0000~0777）
	ErrInvalidFileMode = errors.New("xrotate: invalid FileMode")

	// ErrInvalidDatePattern 日期模式无效，或 AlwaysIncludePattern 未配置日期模式
	ErrInvalidDatePattern = errors.New("xrotate: invalid date pattern")
)

// 运行期错误
var (
	// ErrClosed 轮转器已关闭
	ErrClosed = errors.New("xrotate: rotator is closed")

	// ErrDegraded 轮转后无法打开新文件，写入器已降级
	//
	// 返回的错误同时包装了底层原因，可用 errors.Is 检查两者。
	ErrDegraded = errors.New("xrotate: writer degraded")

	// ErrClosePending 关闭未在期限内完成（轮转或压缩仍在进行）
	ErrClosePending = errors.New("xrotate: close pending")
)

var configErrors = []error{
	ErrEmptyFilename, ErrInvalidPath, ErrPathTraversal, ErrInvalidMaxSize,
	ErrInvalidMaxBackups, ErrInvalidMaxAge, ErrNoCleanupPolicy,
	ErrInvalidFileMode, ErrInvalidDatePattern,
}

// IsConfigError 判断错误是否来自配置校验（而非打开文件等 IO 失败）
func IsConfigError(err error) bool {
	for _, target := range configErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
