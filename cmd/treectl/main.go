// treectl 是 treekv 的命令行客户端，以层级树的视角操作 etcd v2 键空间。
//
// 用法:
//
//	treectl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-c, --config   options 文件路径 (YAML/JSON)
//	-P, --profile  options 中的命名 profile
//	-H, --host     etcd 主机（覆盖 options 与默认值）
//	-p, --port     etcd 端口（覆盖 options 与默认值）
//
// 命令:
//
//	get <key>               读取单个键的值
//	set <key> <value>       写入键值；--dir 写目录，--ttl 设置过期
//	ls <path>               列出路径下一层的键
//	tree <path>             递归打印整棵子树 (JSON)
//	rm <key>                删除键；--recursive 连同子树
//	watch <key>             等待键变更；--recursive/--timeout/--after-index
//	update <file>           按 JSON 文件的嵌套结构批量写入；--base 指定前缀
//
// 配置解析顺序: options 文件 (pillar.master < pillar < 顶层，或 --profile
// 指定的命名 profile 整体替换) < --host/--port 命令行覆盖。
//
// 退出码:
//
//	0: 操作成功
//	1: 操作失败（键不存在、连接失败、写入冲突等）
//	2: 参数错误（缺少参数、未知命令、options 文件无法解析等）
//
// 示例:
//
//	treectl -H 10.0.0.5 get /salt/key1
//	treectl set /salt/dir1 --dir
//	treectl set /salt/tmp value --ttl 30s
//	treectl -c /etc/treekv.yaml -P prod_etcd tree /salt
//	treectl watch /salt/key1 --timeout 30s
//	treectl update fields.json --base /salt
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

// 版本信息（可通过 -ldflags 注入，例如:
//
//	go build -ldflags "-X main.Version=1.0.0 -X main.GitCommit=$(git rev-parse --short HEAD)"
//
// ）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run())
}

// createApp 创建 CLI 应用。
func createApp() *cli.Command {
	return &cli.Command{
		Name:    "treectl",
		Usage:   "etcd v2 层级键空间命令行客户端",
		Version: fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "options 文件路径 (YAML/JSON)",
			},
			&cli.StringFlag{
				Name:    "profile",
				Aliases: []string{"P"},
				Usage:   "options 中的命名 profile",
			},
			&cli.StringFlag{
				Name:    "host",
				Aliases: []string{"H"},
				Usage:   "etcd 主机（覆盖 options）",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "etcd 端口（覆盖 options）",
			},
		},
		Commands:       createCommands(),
		DefaultCommand: "help",
		// 设计决策: 禁止 urfave/cli 直接调用 os.Exit，
		// 由 run() 统一处理退出码映射，确保与文档退出码契约一致。
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(os.Stderr, err)
			}
		},
	}
}

func run() int {
	app := createApp()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setupSignalHandler(cancel)

	if err := app.Run(ctx, os.Args); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(os.Stderr, "参数错误: %v\n", usageErr.msg)
			return 2
		}
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}

	return 0
}

// setupSignalHandler 设置信号处理。
// 第一次信号优雅取消（阻塞中的 watch 随 ctx 解除），第二次信号强制
// 退出（退出码 130 = 128 + SIGINT）。
func setupSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()

		<-sigCh
		signal.Stop(sigCh)
		os.Exit(130)
	}()
}
