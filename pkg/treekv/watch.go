package treekv

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// WatchResult 一次监听的快照结果。
type WatchResult struct {
	// Key 被监听的键。递归监听且发生变更时，替换为实际变更的
	// 后代键。
	Key string

	// Value 变更后的值；未变更时为键的当前值。键在监听窗口内
	// 始终不存在时为空串且 ModifiedIndex 为 0。
	Value string

	// Changed 监听窗口内是否发生了变更。
	Changed bool

	// ModifiedIndex 对应值的版本号。0 表示键不存在。
	ModifiedIndex uint64

	// Dir 节点是否为目录。
	Dir bool
}

// outcomeKind 长轮询读的结果形态。
type outcomeKind int

const (
	// outcomeChanged 等到了变更。
	outcomeChanged outcomeKind = iota
	// outcomeTimedOut 超时未变更。
	outcomeTimedOut
	// outcomeNotFound 键不存在。
	outcomeNotFound
	// outcomeFailed 连接失败、响应异常或其他错误。
	outcomeFailed
)

// readOutcome 长轮询读的带标签结果。
// 监听协调逻辑对形态做穷尽匹配，没有任何非局部控制流。
type readOutcome struct {
	kind outcomeKind
	node *Node
	err  error
}

// WatchOptions 监听参数。
type WatchOptions struct {
	// Recurse 监听整棵子树；变更结果报告实际变更的后代键。
	Recurse bool

	// Timeout 等待变更的最长时间。0 表示无限等待（仅受 ctx 约束）。
	Timeout time.Duration

	// AfterIndex 只关心该索引之后的变更。0 表示从"现在"开始，
	// 不回放历史。
	AfterIndex uint64
}

// Watch 阻塞等待键的变更，把长轮询的各种出口归一为确定的结果。
//
//   - 超时前等到变更：Changed=true，携带新值与版本号。
//   - 超时且键存在：Changed=false，携带当前值与版本号——"没有变化"
//     是一个正常结果，不是错误。
//   - 超时且键从未存在：Changed=false、空值、ModifiedIndex=0。
//   - 连接失败或响应异常：返回 (nil, err)。nil 结果意味着"稍后重
//     试"，与合法的"未变更"结果严格区分。
//
// 调用在当前 goroutine 上阻塞至多 Timeout（Timeout=0 时无限阻塞，
// 只能通过 ctx 取消解除）。不同键上的并发监听相互独立。
func (c *Client) Watch(ctx context.Context, key string, opts WatchOptions) (*WatchResult, error) {
	if c.isClosed() {
		return nil, ErrClientClosed
	}
	if key == "" {
		return nil, ErrEmptyKey
	}

	ret := &WatchResult{Key: key}

	out := c.longPoll(ctx, key, opts)
	switch out.kind {
	case outcomeChanged:
		if opts.Recurse && out.node.Key != "" {
			ret.Key = out.node.Key
		}
		ret.Value = out.node.Value
		ret.Dir = out.node.Dir
		ret.Changed = true
		ret.ModifiedIndex = out.node.ModifiedIndex
		return ret, nil

	case outcomeTimedOut:
		// 等待到期不是失败：回落为一次普通读取，报告键的现状
		node, err := c.Read(ctx, key, ReadOptions{})
		switch {
		case err == nil:
			ret.Value = node.Value
			ret.Dir = node.Dir
			ret.ModifiedIndex = node.ModifiedIndex
			return ret, nil
		case errors.Is(err, ErrKeyNotFound):
			c.logger.DebugContext(ctx, "etcd: key was not created while watching",
				slog.String("key", key))
			return ret, nil
		default:
			return nil, err
		}

	case outcomeNotFound:
		return nil, out.err

	default: // outcomeFailed
		if IsConnectionFailed(out.err) {
			c.logger.ErrorContext(ctx, "etcd: failed to perform 'watch' operation due to connection error",
				slog.String("key", key))
		}
		return nil, out.err
	}
}

// longPoll 发起一次等待型读并给结果打上形态标签。
func (c *Client) longPoll(ctx context.Context, key string, opts WatchOptions) readOutcome {
	node, err := c.Read(ctx, key, ReadOptions{
		Recursive:  opts.Recurse,
		Wait:       true,
		Timeout:    opts.Timeout,
		AfterIndex: opts.AfterIndex,
	})
	switch {
	case err == nil:
		if node == nil {
			return readOutcome{kind: outcomeFailed, err: ErrMalformedResponse}
		}
		return readOutcome{kind: outcomeChanged, node: node}
	case errors.Is(err, ErrWatchTimeout):
		return readOutcome{kind: outcomeTimedOut}
	case errors.Is(err, ErrKeyNotFound):
		return readOutcome{kind: outcomeNotFound, err: err}
	default:
		return readOutcome{kind: outcomeFailed, err: err}
	}
}
