package treekv

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// WriteResult 一次写入的结果。
type WriteResult struct {
	// Key 写入的绝对键路径。
	Key string

	// Value 实际写入的值。目录写入时为空串。
	Value string

	// Dir 是否写入的是目录。
	Dir bool
}

// DeleteResult 删除操作的四态结果。
type DeleteResult int

const (
	// DeleteOK 删除成功。
	DeleteOK DeleteResult = iota

	// DeleteMissing 键不存在。
	DeleteMissing

	// DeleteConflict 节点类型冲突、根节点只读，或目录非空且未指定递归。
	DeleteConflict

	// DeleteFailed 连接失败或其他错误。
	DeleteFailed
)

// String 返回删除结果的字符串表示。
func (r DeleteResult) String() string {
	switch r {
	case DeleteOK:
		return "ok"
	case DeleteMissing:
		return "missing"
	case DeleteConflict:
		return "conflict"
	case DeleteFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Read 读取一个键，必要时等待其变更。
//
// 这是唯一向调用方透出错误分类的操作：键不存在 (ErrKeyNotFound)、
// 连接失败 (ErrConnectionFailed)、监听超时 (ErrWatchTimeout)、响应
// 异常 (ErrMalformedResponse) 原样返回，供上层按类别分支——"键不
// 存在"和"存储不可达"对需要区分二者的调用方是两种完全不同的事实。
// 未分类的错误记录后透传。
func (c *Client) Read(ctx context.Context, key string, opts ReadOptions) (*Node, error) {
	if c.isClosed() {
		return nil, ErrClientClosed
	}
	if key == "" {
		return nil, ErrEmptyKey
	}

	node, err := c.transport.Read(ctx, key, opts)
	if err != nil {
		c.logRead(ctx, key, opts, err)
		return nil, err
	}
	return node, nil
}

// logRead 按错误类别选择日志级别：等待超时是预期内的行为，记 debug；
// 其余失败记 error。
func (c *Client) logRead(ctx context.Context, key string, opts ReadOptions, err error) {
	switch {
	case errors.Is(err, ErrWatchTimeout):
		c.logger.DebugContext(ctx, "etcd: timed out while executing a wait",
			slog.String("op", "read"), slog.String("key", key))
	case errors.Is(err, ErrKeyNotFound):
		c.logger.DebugContext(ctx, "etcd: key not found",
			slog.String("op", "read"), slog.String("key", key))
	default:
		c.logger.ErrorContext(ctx, "etcd: read failed",
			slog.String("op", "read"), slog.String("key", key),
			slog.Bool("wait", opts.Wait), slog.Any("error", err))
	}
}

// Get 获取单个键的值。
//
// 返回 (值, true)；键不存在、连接失败或响应异常时返回 ("", false)，
// 不返回错误。需要整棵子树时使用 Tree。
func (c *Client) Get(ctx context.Context, key string) (string, bool) {
	node, err := c.Read(ctx, key, ReadOptions{})
	if err != nil {
		if IsConnectionFailed(err) {
			c.logger.ErrorContext(ctx, "etcd: failed to perform 'get' operation due to connection error",
				slog.String("key", key))
		}
		return "", false
	}
	return node.Value, true
}

// Ls 列出路径下一层的键。
//
// 返回 {path: {子键: 值或空目录}}：目录子项的键带尾部斜杠、值为空
// Directory；叶子子项的键为完整路径、值为 Leaf。远端列表中可能出现
// 的自引用根项会被跳过。键不存在或连接失败时返回 nil。
func (c *Client) Ls(ctx context.Context, path string) map[string]Directory {
	node, err := c.Read(ctx, path, ReadOptions{})
	if err != nil {
		if IsConnectionFailed(err) {
			c.logger.ErrorContext(ctx, "etcd: failed to perform 'ls' operation due to connection error",
				slog.String("path", path))
		}
		return nil
	}

	listing := make(Directory, len(node.Children))
	for _, child := range node.Children {
		if child.Dir {
			if child.Key == path {
				continue
			}
			listing[child.Key+"/"] = Directory{}
		} else {
			listing[child.Key] = Leaf(child.Value)
		}
	}
	return map[string]Directory{path: listing}
}

// Tree 递归读取路径下的整棵子树，重建为嵌套树。
//
// 每一层以最后一个路径片段为键（与 Update 的嵌套输入同构），不是
// 完整路径。注意这是有意保留的反规范化：不同深度的同名目录在各自
// 的层级里互不影响，但调用方拿到的键没有位置信息。
// 键不存在、连接失败或响应异常时返回 nil。
func (c *Client) Tree(ctx context.Context, path string) Directory {
	node, err := c.Read(ctx, path, ReadOptions{})
	if err != nil {
		if IsConnectionFailed(err) {
			c.logger.ErrorContext(ctx, "etcd: failed to perform 'tree' operation due to connection error",
				slog.String("path", path))
		}
		return nil
	}

	tree := make(Directory, len(node.Children))
	for _, child := range node.Children {
		segments := strings.Split(child.Key, "/")
		name := segments[len(segments)-1]
		if child.Dir {
			if child.Key == path {
				continue
			}
			sub := c.Tree(ctx, child.Key)
			if sub == nil {
				return nil
			}
			tree[name] = sub
		} else {
			tree[name] = Leaf(child.Value)
		}
	}
	return tree
}

// Write 写入文件或目录，按 dir 标志分派。
// 成功返回写入结果，冲突或失败返回 nil。
func (c *Client) Write(ctx context.Context, key, value string, ttl time.Duration, dir bool) *WriteResult {
	if dir {
		if !c.WriteDirectory(ctx, key, value, ttl) {
			return nil
		}
		return &WriteResult{Key: key, Dir: true}
	}
	written, ok := c.WriteFile(ctx, key, value, ttl)
	if !ok {
		return nil
	}
	return &WriteResult{Key: key, Value: written}
}

// Set 是 Write 的别名。
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration, dir bool) *WriteResult {
	return c.Write(ctx, key, value, ttl, dir)
}

// WriteFile 写入一个键值对。
//
// 成功返回 (写入的值, true)。目标已是目录（类型冲突）、根只读、
// 连接失败时返回 ("", false) 并记录日志；未分类的错误同样折叠为
// 失败，但以 error 级别记录全文。
func (c *Client) WriteFile(ctx context.Context, key, value string, ttl time.Duration) (string, bool) {
	if c.isClosed() || key == "" {
		return "", false
	}

	node, err := c.transport.Write(ctx, key, value, WriteOptions{TTL: ttl})
	if err != nil {
		c.logger.ErrorContext(ctx, "etcd: write file failed",
			slog.String("op", "write"), slog.String("key", key), slog.Any("error", err))
		return "", false
	}
	return node.Value, true
}

// WriteDirectory 写入一个目录。
//
// 目标已经是同样的目录时视为幂等成功；目标是文件（类型冲突）、根
// 只读、连接失败时返回 false。目录不能携带值：value 非空会被接受
// 但记录一条提示（值会被丢弃）。
func (c *Client) WriteDirectory(ctx context.Context, key, value string, ttl time.Duration) bool {
	if c.isClosed() || key == "" {
		return false
	}
	if value != "" {
		c.logger.InfoContext(ctx, "etcd: non-empty value passed for directory",
			slog.String("key", key), slog.String("value", value))
	}

	_, err := c.transport.Write(ctx, key, "", WriteOptions{TTL: ttl, Dir: true})
	if err != nil {
		// 对已存在的目录写目录，服务端报"不是文件"——这不是冲突，
		// 而是目标已处于期望状态
		if errors.Is(err, ErrNotFile) {
			c.logger.InfoContext(ctx, "etcd: directory already exists", slog.String("key", key))
			return true
		}
		c.logger.ErrorContext(ctx, "etcd: write directory failed",
			slog.String("op", "write"), slog.String("key", key), slog.Any("error", err))
		return false
	}
	return true
}

// Update 按 fields 的嵌套形态批量写入。
//
// fields 先经 Flatten 展开（base 为所有键的前缀），再逐项写入：嵌套
// map 对应目录，标量对应文件。返回扁平键到写入结果的映射，失败的
// 键对应 nil 值。fields 不是 map 结构时返回 nil。
//
//	client.Update(ctx, map[string]any{
//	    "key1": "value1",
//	    "key2": map[string]any{"sub1": "s1"},
//	}, "/salt")
//
// 会写入 /salt/key1 = "value1" 与 /salt/key2/sub1 = "s1"。
func (c *Client) Update(ctx context.Context, fields any, base string) map[string]*WriteResult {
	dir, err := FromMap(fields)
	if err != nil {
		c.logger.ErrorContext(ctx, "etcd: update fields is not a map",
			slog.String("base", base), slog.Any("error", err))
		return nil
	}

	flat := Flatten(dir, base)
	results := make(map[string]*WriteResult, len(flat))
	for k, entry := range flat {
		results[k] = c.Write(ctx, k, entry.Value, 0, entry.Dir)
	}
	return results
}

// Delete 删除键，recursive 时连同整棵子树。
//
// 四态结果见 DeleteResult。别名 Rm 行为相同。
func (c *Client) Delete(ctx context.Context, key string, recursive bool) DeleteResult {
	if c.isClosed() || key == "" {
		return DeleteFailed
	}

	_, err := c.transport.Delete(ctx, key, recursive)
	switch {
	case err == nil:
		return DeleteOK
	case errors.Is(err, ErrKeyNotFound):
		c.logger.DebugContext(ctx, "etcd: delete: key not found", slog.String("key", key))
		return DeleteMissing
	case errors.Is(err, ErrNodeTypeConflict), errors.Is(err, ErrDirNotEmpty):
		c.logger.ErrorContext(ctx, "etcd: delete rejected",
			slog.String("key", key), slog.Bool("recursive", recursive), slog.Any("error", err))
		return DeleteConflict
	default:
		c.logger.ErrorContext(ctx, "etcd: delete failed",
			slog.String("key", key), slog.Any("error", err))
		return DeleteFailed
	}
}

// Rm 是 Delete 的别名。
func (c *Client) Rm(ctx context.Context, key string, recursive bool) DeleteResult {
	return c.Delete(ctx, key, recursive)
}
