package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xlogkit/pkg/config/xconf"
	"github.com/omeyang/xlogkit/pkg/logging/xappender"
	"github.com/omeyang/xlogkit/pkg/logging/xdiag"
	"github.com/omeyang/xlogkit/pkg/observability/xlog"
)

// maxLineSize 单行上限，超出的行被截断为多条
const maxLineSize = 1 << 20

// usageError 参数错误，映射为退出码 2
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// 创建所有子命令。
func createCommands() []*cli.Command {
	return []*cli.Command{
		createWriteCommand(),
		createRollCommand(),
		createSizeCommand(),
		createCheckCommand(),
	}
}

// fileFlags 单文件配置参数（未指定 --config 时使用）
func fileFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "file",
			Aliases: []string{"f"},
			Usage:   "日志文件路径",
		},
		&cli.StringFlag{
			Name:    "max-size",
			Aliases: []string{"s"},
			Usage:   "单文件大小上限（10M、1G），0 表示不按大小轮转",
			Value:   "10M",
		},
		&cli.IntFlag{
			Name:    "backups",
			Aliases: []string{"b"},
			Usage:   "保留的备份数量",
			Value:   xappender.DefaultBackups,
		},
		&cli.BoolFlag{
			Name:  "compress",
			Usage: "gzip 压缩备份",
		},
		&cli.StringFlag{
			Name:  "pattern",
			Usage: "按日期轮转的粒度（yyyy-MM-dd、hourly、daily 等）",
		},
		&cli.StringFlag{
			Name:  "layout",
			Usage: "行布局：basic、json、messagePassThrough",
			Value: "messagePassThrough",
		},
	}
}

// createWriteCommand 创建 write 子命令。
func createWriteCommand() *cli.Command {
	flags := append(fileFlags(),
		&cli.StringFlag{
			Name:  "category",
			Usage: "写入的分类",
			Value: xlog.DefaultCategory,
		},
		&cli.StringFlag{
			Name:    "level",
			Aliases: []string{"l"},
			Usage:   "每行的级别",
			Value:   "info",
		},
		&cli.BoolFlag{
			Name:  "watch",
			Usage: "监视 --config 文件并热重载",
		},
		&cli.StringFlag{
			Name:  "rotate-cron",
			Usage: "定时轮转的 cron 表达式（\"0 0 * * *\"、@hourly）",
		},
	)
	return &cli.Command{
		Name:    "write",
		Aliases: []string{"w"},
		Usage:   "从标准输入逐行写入日志",
		Flags:   flags,
		Action:  cmdWrite,
	}
}

// createRollCommand 创建 roll 子命令。
func createRollCommand() *cli.Command {
	return &cli.Command{
		Name:    "roll",
		Aliases: []string{"r"},
		Usage:   "立即轮转日志文件并列出备份",
		Flags:   fileFlags(),
		Action:  cmdRoll,
	}
}

// createSizeCommand 创建 size 子命令。
func createSizeCommand() *cli.Command {
	return &cli.Command{
		Name:      "size",
		Usage:     "解析大小字符串",
		ArgsUsage: "<size> [size...]",
		Action:    cmdSize,
	}
}

// createCheckCommand 创建 check 子命令。
func createCheckCommand() *cli.Command {
	return &cli.Command{
		Name:   "check",
		Usage:  "校验 --config 配置文件并打印分类路由",
		Action: cmdCheck,
	}
}

// loadConfig 读取 --config，未指定时由单文件参数构造
func loadConfig(cmd *cli.Command) (xlog.Config, error) {
	if path := cmd.String("config"); path != "" {
		return xconf.Load(path)
	}
	file := cmd.String("file")
	if file == "" {
		return xlog.Config{}, usagef("either --config or --file is required")
	}
	if _, err := xappender.ParseSize(cmd.String("max-size")); err != nil {
		return xlog.Config{}, usagef("invalid --max-size: %v", err)
	}
	backups := int(cmd.Int("backups"))
	opts := xappender.Options{
		Type:       xappender.TypeFile,
		Filename:   file,
		MaxLogSize: cmd.String("max-size"),
		Backups:    &backups,
		Compress:   cmd.Bool("compress"),
		Pattern:    cmd.String("pattern"),
		Layout:     cmd.String("layout"),
	}
	return xlog.Config{
		Appenders: map[string]xappender.Options{"file": opts},
		Categories: map[string]xlog.CategoryConfig{
			xlog.DefaultCategory: {Appenders: []string{"file"}, Level: "trace"},
		},
	}, nil
}

// buildFacility 按配置创建日志门面，诊断信息输出到 stderr
func buildFacility(cmd *cli.Command, cfg xlog.Config) (*xlog.Facility, error) {
	root := cmd.Root()
	return xlog.New().
		SetConfig(cfg).
		SetDiag(xdiag.New(xdiag.WithWriter(root.ErrWriter))).
		SetConsole(root.Writer, root.ErrWriter).
		Build()
}

func shutdown(cmd *cli.Command, f *xlog.Facility) error {
	ctx, cancel := context.WithTimeout(context.Background(), cmd.Duration("timeout"))
	defer cancel()
	return f.Shutdown(ctx)
}

// cmdWrite 逐行读取标准输入并写入日志，EOF 或收到终止信号后关闭
func cmdWrite(ctx context.Context, cmd *cli.Command) error {
	level, err := xlog.ParseLevel(cmd.String("level"))
	if err != nil {
		return usagef("invalid --level: %v", err)
	}
	if cmd.Bool("watch") && cmd.String("config") == "" {
		return usagef("--watch requires --config")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	f, err := buildFacility(cmd, cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_ = f.Registry().WatchSignals(gctx)
		return nil
	})

	if spec := cmd.String("rotate-cron"); spec != "" {
		stop, err := f.Registry().ScheduleRotate(spec)
		if err != nil {
			cancel()
			return errors.Join(usagef("invalid --rotate-cron: %v", err), g.Wait(), shutdown(cmd, f))
		}
		defer stop()
	}

	if cmd.Bool("watch") {
		w, err := startWatch(cmd, f)
		if err != nil {
			cancel()
			return errors.Join(err, g.Wait(), shutdown(cmd, f))
		}
		defer func() { _ = w.Stop() }()
	}

	log := f.Logger(cmd.String("category"))
	readErr := pump(ctx, cmd.Root().Reader, func(line string) {
		log.Log(ctx, level, line)
	})
	cancel()
	return errors.Join(readErr, g.Wait(), shutdown(cmd, f))
}

func startWatch(cmd *cli.Command, f *xlog.Facility) (*xconf.Watcher, error) {
	src, err := xconf.New(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	errw := cmd.Root().ErrWriter
	w, err := xconf.Watch(src, f, xconf.WithOnReload(func(_ xlog.Config, err error) {
		if err != nil {
			fmt.Fprintf(errw, "xlogctl: reload %s: %v\n", src.Path(), err)
		}
	}))
	if err != nil {
		return nil, err
	}
	w.StartAsync()
	return w, nil
}

// pump 逐行读取 r 并调用 fn，直到 EOF 或 ctx 结束
func pump(ctx context.Context, r io.Reader, fn func(string)) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), maxLineSize)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errc:
					return err
				default:
					return nil
				}
			}
			fn(line)
		}
	}
}

// cmdRoll 轮转文件并列出当前备份
func cmdRoll(_ context.Context, cmd *cli.Command) error {
	if cmd.String("file") == "" {
		return usagef("--file is required")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	f, err := buildFacility(cmd, cfg)
	if err != nil {
		return err
	}
	rotateErr := f.Registry().Rotate()
	if err := errors.Join(rotateErr, shutdown(cmd, f)); err != nil {
		return err
	}

	out := cmd.Root().Writer
	file := cmd.String("file")
	fmt.Fprintf(out, "rolled %s\n", file)
	backups, err := listBackups(file)
	if err != nil {
		return err
	}
	for _, b := range backups {
		fmt.Fprintf(out, "  %-40s %10s  %s\n", b.name, humanize.IBytes(uint64(b.size)), humanize.Time(b.modTime))
	}
	return nil
}

type backupInfo struct {
	name    string
	size    int64
	modTime time.Time
}

// listBackups 列出与 file 同目录、以其主文件名开头的文件
func listBackups(file string) ([]backupInfo, error) {
	dir, base := filepath.Dir(file), filepath.Base(file)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []backupInfo
	for _, e := range entries {
		if e.IsDir() || e.Name() == base || !strings.HasPrefix(e.Name(), stem) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, backupInfo{name: e.Name(), size: info.Size(), modTime: info.ModTime()})
	}
	slices.SortFunc(out, func(a, b backupInfo) int { return strings.Compare(a.name, b.name) })
	return out, nil
}

// cmdSize 打印大小字符串对应的字节数
func cmdSize(_ context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) == 0 {
		return usagef("size requires at least one value")
	}
	out := cmd.Root().Writer
	for _, a := range args {
		n, err := xappender.ParseSize(a)
		if err != nil {
			return usagef("%v", err)
		}
		fmt.Fprintf(out, "%s\t%d\t%s\n", a, n, humanize.IBytes(uint64(n)))
	}
	return nil
}

// cmdCheck 校验配置并打印每个分类的级别与输出端
func cmdCheck(_ context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if path == "" {
		return usagef("check requires --config")
	}
	cfg, err := xconf.Load(path)
	if err != nil {
		return err
	}

	out := cmd.Root().Writer
	names := make([]string, 0, len(cfg.Categories))
	for name := range cfg.Categories {
		names = append(names, name)
	}
	slices.Sort(names)
	fmt.Fprintf(out, "%s: %d appenders, %d categories\n", path, len(cfg.Appenders), len(names))
	for _, name := range names {
		c := cfg.Categories[name]
		level := c.Level
		if level == "" {
			level = "(inherit)"
		}
		fmt.Fprintf(out, "  %-20s %-10s %s\n", name, level, strings.Join(c.Appenders, ","))
	}
	return nil
}

// setupSignalHandler 第一次 SIGINT/SIGTERM 优雅取消，第二次强制退出
func setupSignalHandler(cancel context.CancelFunc) (stop func()) {
	sigCh := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-done:
			return
		}
		select {
		case <-sigCh:
			exit(130)
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
