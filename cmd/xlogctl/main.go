// xlogctl 是 xlogkit 的命令行工具：把标准输入写入滚动日志文件、手动轮转、校验配置。
//
// 用法:
//
//	xlogctl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-c, --config   日志配置文件（YAML/JSON），未指定时由命令参数构造单文件配置
//	-t, --timeout  关闭输出端的超时时间 (默认: 5s)
//
// 命令:
//
//	write          从标准输入逐行写入日志（SIGHUP 重新打开文件）
//	roll           立即轮转指定文件
//	size <值...>   解析大小字符串（10M、1G、1024）
//	check          校验配置文件并打印分类路由
//
// 退出码:
//
//	0: 命令执行成功
//	1: 命令执行失败
//	2: 参数错误（无效大小、缺少必需参数、未知命令等）
//
// 示例:
//
//	myapp 2>&1 | xlogctl write -f /var/log/myapp.log -s 50M -b 7 --compress
//	xlogctl write -f app.log --pattern yyyy-MM-dd --rotate-cron "0 0 * * *"
//	xlogctl -c /etc/myapp/log.yaml write --category app.stdout --watch
//	xlogctl roll -f /var/log/myapp.log -b 7
//	xlogctl size 10M 1G
//	xlogctl -c /etc/myapp/log.yaml check
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tebeka/atexit"
	"github.com/urfave/cli/v3"
)

// defaultTimeout 默认关闭超时。
const defaultTimeout = 5 * time.Second

// 版本信息（可通过 -ldflags 注入，例如:
//
//	go build -ldflags "-X main.Version=1.0.0 -X main.GitCommit=$(git rev-parse --short HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// ）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// exit 执行 atexit 退出钩子（关闭并排空所有日志文件）后退出进程
var exit = atexit.Exit

func main() {
	exit(run(os.Args))
}

// createApp 创建 CLI 应用。
func createApp() *cli.Command {
	return &cli.Command{
		Name:    "xlogctl",
		Usage:   "滚动日志文件命令行工具",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "日志配置文件（.yaml/.yml/.json）",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "关闭输出端的超时时间",
				Value:   defaultTimeout,
			},
		},
		Commands:       createCommands(),
		DefaultCommand: "help",
		// 设计决策: 禁止 urfave/cli 直接调用 os.Exit，
		// 由 run() 统一处理退出码映射，确保与文档退出码契约一致。
		ExitErrHandler: func(_ context.Context, cmd *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(cmd.Root().ErrWriter, err)
			}
		},
	}
}

func run(args []string) int {
	return runApp(createApp(), args)
}

// runApp 执行应用并映射退出码
func runApp(app *cli.Command, args []string) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := setupSignalHandler(cancel)
	defer stop()

	if err := app.Run(ctx, args); err != nil {
		errw := app.ErrWriter
		if errw == nil {
			errw = os.Stderr
		}
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(errw, "参数错误: %v\n", usageErr)
			return 2
		}
		if isCLIUsageError(err) {
			// flag 解析器已向 stderr 输出错误详情
			return 2
		}
		fmt.Fprintf(errw, "错误: %v\n", err)
		return 1
	}
	return 0
}

// isCLIUsageError 识别 CLI 框架产生的参数错误（未知 flag、缺少必需 flag 等）
func isCLIUsageError(err error) bool {
	msg := err.Error()
	for _, s := range []string{
		"flag provided but not defined",
		"Required flag",
		"No help topic",
		"invalid value",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
