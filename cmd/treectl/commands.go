package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/urfave/cli/v3"

	"github.com/omeyang/treekv/pkg/treekv"
)

// exitError 表示需要非零退出码但已完成输出的场景。
// 命令内部已完成所有输出，main 只需设置退出码。
type exitError struct {
	code int
}

func (e *exitError) Error() string { return "" }

// usageError 参数错误，对应退出码 2。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

// 创建所有子命令。
func createCommands() []*cli.Command {
	return []*cli.Command{
		createGetCommand(),
		createSetCommand(),
		createLsCommand(),
		createTreeCommand(),
		createRmCommand(),
		createWatchCommand(),
		createUpdateCommand(),
	}
}

// createGetCommand 创建 get 子命令。
func createGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "读取单个键的值",
		ArgsUsage: "<key>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			key, err := singleArg(cmd, "key")
			if err != nil {
				return err
			}
			return withClient(cmd, func(c *treekv.Client) error {
				value, ok := c.Get(ctx, key)
				if !ok {
					fmt.Fprintf(os.Stderr, "键 %s 不存在或不可达\n", key)
					return &exitError{code: 1}
				}
				fmt.Println(value)
				return nil
			})
		},
	}
}

// createSetCommand 创建 set 子命令。
func createSetCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "写入键值或创建目录",
		ArgsUsage: "<key> [value]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "创建目录而非键值",
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "过期时间（如 30s、5m），0 表示永不过期",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if len(args) == 0 {
				return &usageError{msg: "set 命令需要指定键名"}
			}
			key := args[0]
			value := ""
			if len(args) > 1 {
				value = args[1]
			}
			dir := cmd.Bool("dir")
			if !dir && len(args) < 2 {
				return &usageError{msg: "set 命令需要指定值（或使用 --dir 创建目录）"}
			}
			return withClient(cmd, func(c *treekv.Client) error {
				ret := c.Set(ctx, key, value, cmd.Duration("ttl"), dir)
				if ret == nil {
					fmt.Fprintf(os.Stderr, "写入 %s 失败\n", key)
					return &exitError{code: 1}
				}
				if ret.Dir {
					fmt.Printf("%s/\n", ret.Key)
				} else {
					fmt.Printf("%s = %s\n", ret.Key, ret.Value)
				}
				return nil
			})
		},
	}
}

// createLsCommand 创建 ls 子命令。
func createLsCommand() *cli.Command {
	return &cli.Command{
		Name:      "ls",
		Usage:     "列出路径下一层的键",
		ArgsUsage: "<path>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path, err := singleArg(cmd, "path")
			if err != nil {
				return err
			}
			return withClient(cmd, func(c *treekv.Client) error {
				listing := c.Ls(ctx, path)
				if listing == nil {
					fmt.Fprintf(os.Stderr, "路径 %s 不存在或不可达\n", path)
					return &exitError{code: 1}
				}
				for key, entry := range listing[path] {
					if leaf, ok := entry.(treekv.Leaf); ok {
						fmt.Printf("%s = %s\n", key, string(leaf))
					} else {
						fmt.Println(key)
					}
				}
				return nil
			})
		},
	}
}

// createTreeCommand 创建 tree 子命令。
func createTreeCommand() *cli.Command {
	return &cli.Command{
		Name:      "tree",
		Usage:     "递归打印整棵子树 (JSON)",
		ArgsUsage: "<path>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path, err := singleArg(cmd, "path")
			if err != nil {
				return err
			}
			return withClient(cmd, func(c *treekv.Client) error {
				tree := c.Tree(ctx, path)
				if tree == nil {
					fmt.Fprintf(os.Stderr, "路径 %s 不存在或不可达\n", path)
					return &exitError{code: 1}
				}
				out, err := json.MarshalIndent(tree, "", "  ")
				if err != nil {
					return fmt.Errorf("序列化失败: %w", err)
				}
				fmt.Println(string(out))
				return nil
			})
		},
	}
}

// createRmCommand 创建 rm 子命令。
func createRmCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "删除键",
		ArgsUsage: "<key>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "recursive",
				Aliases: []string{"r"},
				Usage:   "连同整棵子树删除",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			key, err := singleArg(cmd, "key")
			if err != nil {
				return err
			}
			return withClient(cmd, func(c *treekv.Client) error {
				ret := c.Rm(ctx, key, cmd.Bool("recursive"))
				fmt.Printf("%s: %s\n", key, ret)
				if ret != treekv.DeleteOK {
					return &exitError{code: 1}
				}
				return nil
			})
		},
	}
}

// createWatchCommand 创建 watch 子命令。
func createWatchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "等待键变更",
		ArgsUsage: "<key>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "recursive",
				Aliases: []string{"r"},
				Usage:   "监听整棵子树",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "等待变更的最长时间，0 表示无限等待",
			},
			&cli.UintFlag{
				Name:  "after-index",
				Usage: "只关心该索引之后的变更",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			key, err := singleArg(cmd, "key")
			if err != nil {
				return err
			}
			return withClient(cmd, func(c *treekv.Client) error {
				ret, err := c.Watch(ctx, key, treekv.WatchOptions{
					Recurse:    cmd.Bool("recursive"),
					Timeout:    cmd.Duration("timeout"),
					AfterIndex: uint64(cmd.Uint("after-index")),
				})
				if err != nil {
					fmt.Fprintf(os.Stderr, "监听 %s 失败: %v\n", key, err)
					return &exitError{code: 1}
				}
				out, marshalErr := json.MarshalIndent(ret, "", "  ")
				if marshalErr != nil {
					return fmt.Errorf("序列化失败: %w", marshalErr)
				}
				fmt.Println(string(out))
				return nil
			})
		},
	}
}

// createUpdateCommand 创建 update 子命令。
func createUpdateCommand() *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "按 JSON 文件的嵌套结构批量写入",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "base",
				Aliases: []string{"b"},
				Usage:   "所有键的公共前缀",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path, err := singleArg(cmd, "file")
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return &usageError{msg: fmt.Sprintf("无法读取 %s: %v", path, err)}
			}
			fields, err := treekv.OptionsFromBytes(data, kjson.Parser())
			if err != nil {
				return &usageError{msg: fmt.Sprintf("无法解析 %s: %v", path, err)}
			}
			return withClient(cmd, func(c *treekv.Client) error {
				results := c.Update(ctx, fields, cmd.String("base"))
				if results == nil {
					fmt.Fprintln(os.Stderr, "批量写入失败: 输入不是嵌套结构")
					return &exitError{code: 1}
				}
				failed := 0
				for key, ret := range results {
					if ret == nil {
						failed++
						fmt.Fprintf(os.Stderr, "%s: 写入失败\n", key)
						continue
					}
					if ret.Dir {
						fmt.Printf("%s/\n", key)
					} else {
						fmt.Printf("%s = %s\n", key, ret.Value)
					}
				}
				if failed > 0 {
					return &exitError{code: 1}
				}
				return nil
			})
		},
	}
}

// singleArg 取出命令的唯一位置参数。
func singleArg(cmd *cli.Command, name string) (string, error) {
	args := cmd.Args().Slice()
	if len(args) != 1 {
		return "", &usageError{msg: fmt.Sprintf("%s 命令需要且仅需要一个 <%s> 参数", cmd.Name, name)}
	}
	return args[0], nil
}

// buildConfig 按优先级组装连接配置:
// options 文件 (--profile 可选) < --host/--port 命令行覆盖。
func buildConfig(cmd *cli.Command) (*treekv.Config, error) {
	var source map[string]any
	if path := cmd.String("config"); path != "" {
		opts, err := treekv.LoadOptions(path)
		if err != nil {
			return nil, &usageError{msg: err.Error()}
		}
		source = opts
	}

	cfg := treekv.ResolveConfig(source, cmd.String("profile"))
	if host := cmd.String("host"); host != "" {
		cfg.Host = host
	}
	if port := cmd.Int("port"); port != 0 {
		cfg.Port = port
	}
	return cfg, nil
}

// withClient 构建客户端、执行操作并确保关闭。
func withClient(cmd *cli.Command, fn func(*treekv.Client) error) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return &usageError{msg: err.Error()}
	}

	c, err := treekv.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("连接 %s:%d 失败: %w", cfg.Host, cfg.Port, err)
	}
	defer c.Close()

	return fn(c)
}
