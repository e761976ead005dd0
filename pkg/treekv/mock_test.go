package treekv

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
)

// =============================================================================
// Mock 实现 - 用于单元测试
// =============================================================================

// fakeTransport 实现 Transport 接口，行为由注入的函数决定。
// 未注入的操作返回 ErrKeyNotFound。
type fakeTransport struct {
	mu       sync.Mutex
	readFn   func(ctx context.Context, key string, opts ReadOptions) (*Node, error)
	writeFn  func(ctx context.Context, key, value string, opts WriteOptions) (*Node, error)
	deleteFn func(ctx context.Context, key string, recursive bool) (*Node, error)

	reads   []ReadOptions
	writes  []recordedWrite
	deletes []string
	closed  bool
}

type recordedWrite struct {
	key   string
	value string
	opts  WriteOptions
}

func (f *fakeTransport) Read(ctx context.Context, key string, opts ReadOptions) (*Node, error) {
	f.mu.Lock()
	f.reads = append(f.reads, opts)
	f.mu.Unlock()
	if f.readFn == nil {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return f.readFn(ctx, key, opts)
}

func (f *fakeTransport) Write(ctx context.Context, key, value string, opts WriteOptions) (*Node, error) {
	f.mu.Lock()
	f.writes = append(f.writes, recordedWrite{key: key, value: value, opts: opts})
	f.mu.Unlock()
	if f.writeFn == nil {
		return &Node{Key: key, Value: value, Dir: opts.Dir, ModifiedIndex: 1}, nil
	}
	return f.writeFn(ctx, key, value, opts)
}

func (f *fakeTransport) Delete(ctx context.Context, key string, recursive bool) (*Node, error) {
	f.mu.Lock()
	f.deletes = append(f.deletes, key)
	f.mu.Unlock()
	if f.deleteFn == nil {
		return &Node{Key: key}, nil
	}
	return f.deleteFn(ctx, key, recursive)
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// newFakeClient 创建注入 fakeTransport 的客户端，日志丢弃。
func newFakeClient(t *testing.T, ft Transport) *Client {
	t.Helper()
	c, err := NewClient(DefaultConfig(),
		WithTransport(ft),
		WithLogger(slog.New(slog.DiscardHandler)),
	)
	if err != nil {
		t.Fatalf("NewClient() error = %v, want nil", err)
	}
	return c
}

// =============================================================================
// 内存存储 - 用于目录遍历/往返测试
// =============================================================================

// memNode 内存存储中的一个节点。
type memNode struct {
	value string
	dir   bool
	index uint64
}

// memStore 由 FlatMap 构建的只读内存存储，按 etcd v2 的目录语义
// 服务 Read：目录节点返回直接子节点列表。
type memStore struct {
	nodes map[string]*memNode
}

func newMemStore(flat FlatMap) *memStore {
	s := &memStore{nodes: make(map[string]*memNode)}
	var index uint64
	for key, entry := range flat {
		index++
		// 补齐所有祖先目录
		segments := strings.Split(strings.Trim(key, "/"), "/")
		for i := 1; i < len(segments); i++ {
			p := "/" + strings.Join(segments[:i], "/")
			if _, ok := s.nodes[p]; !ok {
				s.nodes[p] = &memNode{dir: true, index: index}
			}
		}
		if entry.Dir {
			s.nodes[key] = &memNode{dir: true, index: index}
		} else {
			s.nodes[key] = &memNode{value: entry.Value, index: index}
		}
	}
	return s
}

func (s *memStore) Read(_ context.Context, key string, _ ReadOptions) (*Node, error) {
	n, ok := s.nodes[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	node := &Node{Key: key, Value: n.value, Dir: n.dir, ModifiedIndex: n.index}
	if n.dir {
		prefix := key + "/"
		var childKeys []string
		for k := range s.nodes {
			if strings.HasPrefix(k, prefix) && !strings.Contains(k[len(prefix):], "/") {
				childKeys = append(childKeys, k)
			}
		}
		sort.Strings(childKeys)
		for _, k := range childKeys {
			child := s.nodes[k]
			node.Children = append(node.Children, &Node{
				Key:           k,
				Value:         child.value,
				Dir:           child.dir,
				ModifiedIndex: child.index,
			})
		}
	}
	return node, nil
}

func (s *memStore) Write(_ context.Context, key, value string, opts WriteOptions) (*Node, error) {
	return nil, fmt.Errorf("memStore is read only")
}

func (s *memStore) Delete(_ context.Context, key string, _ bool) (*Node, error) {
	return nil, fmt.Errorf("memStore is read only")
}

func (s *memStore) Close() error { return nil }

// waitTimeoutThenRead 构造常见的监听脚本：等待型读超时，回落读返回
// 给定结果。
func waitTimeoutThenRead(node *Node, fallbackErr error) func(context.Context, string, ReadOptions) (*Node, error) {
	return func(_ context.Context, _ string, opts ReadOptions) (*Node, error) {
		if opts.Wait {
			return nil, fmt.Errorf("%w after %v", ErrWatchTimeout, opts.Timeout)
		}
		if fallbackErr != nil {
			return nil, fallbackErr
		}
		return node, nil
	}
}
