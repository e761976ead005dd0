package treekv

import (
	"context"
	"time"
)

// Node 一次读取返回的节点快照。
// 目录节点没有值；Children 仅在目录读取时填充。
type Node struct {
	// Key 绝对键路径。
	Key string

	// Value 叶子节点的值。目录节点为空串。
	Value string

	// Dir 是否为目录。
	Dir bool

	// ModifiedIndex 节点最近一次变更的单调递增版本号。
	ModifiedIndex uint64

	// TTL 剩余存活秒数，0 表示永不过期。
	TTL int64

	// Children 目录的子节点（与本结构同构）。
	Children []*Node
}

// ReadOptions 读操作参数。
type ReadOptions struct {
	// Recursive 递归读取整棵子树。
	Recursive bool

	// Wait 以长轮询方式等待变更，而非立即返回当前值。
	Wait bool

	// Timeout 等待的最长时间。0 表示无限等待（仅受 ctx 约束）。
	// 仅在 Wait 为 true 时生效；普通读的超时由客户端配置决定。
	Timeout time.Duration

	// AfterIndex 返回该索引之后的变更。0 表示从"现在"开始监听，
	// 不回放历史变更。仅在 Wait 为 true 时生效。
	AfterIndex uint64
}

// WriteOptions 写操作参数。
type WriteOptions struct {
	// TTL 键的存活时间，0 表示永不过期。
	TTL time.Duration

	// Dir 写入目录而非文件。
	Dir bool
}

// Transport 对远端存储执行原始读/写/删的网络层。
// 实现必须把底层失败归一到封闭的错误分类
// （ErrKeyNotFound/ErrConnectionFailed/ErrWatchTimeout/
// ErrNodeTypeConflict/ErrDirNotEmpty/ErrMalformedResponse），
// 无法归类的错误原样透出。
//
// 接口存在的目的与 etcd 原生客户端解耦：单元测试注入脚本化实现，
// 生产路径使用 etcd v2 适配（见 newV2Transport）。
type Transport interface {
	Read(ctx context.Context, key string, opts ReadOptions) (*Node, error)
	Write(ctx context.Context, key, value string, opts WriteOptions) (*Node, error)
	Delete(ctx context.Context, key string, recursive bool) (*Node, error)

	// Close 释放底层连接资源。
	Close() error
}
