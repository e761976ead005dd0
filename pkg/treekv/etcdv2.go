package treekv

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	client "go.etcd.io/etcd/client/v2"
)

// v2Transport 基于 etcd v2 API (KeysAPI) 的 Transport 实现。
type v2Transport struct {
	kapi           client.KeysAPI
	httpTransport  *http.Transport
	requestTimeout time.Duration
}

var _ Transport = (*v2Transport)(nil)

// newV2Transport 创建 etcd v2 传输层。
//
// 设计决策: 不设置 HeaderTimeoutPerRequest。v2 的 watch 长轮询在变更
// 到来前不返回响应头，客户端级的头超时会把所有长轮询掐断；超时统一
// 通过每次调用的 context deadline 控制。
func newV2Transport(cfg *Config) (*v2Transport, error) {
	tlsConfig, err := cfg.buildTLSConfig()
	if err != nil {
		return nil, err
	}

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig:     tlsConfig,
	}

	c, err := client.New(client.Config{
		Endpoints: []string{cfg.endpoint()},
		Transport: tr,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("treekv: create etcd client: %w", err)
	}

	return &v2Transport{
		kapi:           client.NewKeysAPI(c),
		httpTransport:  tr,
		requestTimeout: cfg.RequestTimeout,
	}, nil
}

// Read 读取键或等待其变更。
// 普通读受 requestTimeout 约束；等待型读的时限完全由 opts.Timeout
// 决定，0 表示无限等待。
func (t *v2Transport) Read(ctx context.Context, key string, opts ReadOptions) (*Node, error) {
	var (
		resp *client.Response
		err  error
	)
	if opts.Wait {
		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}
		w := t.kapi.Watcher(key, &client.WatcherOptions{
			AfterIndex: opts.AfterIndex,
			Recursive:  opts.Recursive,
		})
		resp, err = w.Next(ctx)
	} else {
		ctx, cancel := context.WithTimeout(ctx, t.requestTimeout)
		defer cancel()
		resp, err = t.kapi.Get(ctx, key, &client.GetOptions{
			Recursive: opts.Recursive,
			Sort:      true,
		})
	}
	if err != nil {
		return nil, classifyError(err, opts.Wait)
	}
	return nodeFromResponse(resp)
}

// Write 写入文件或目录。
func (t *v2Transport) Write(ctx context.Context, key, value string, opts WriteOptions) (*Node, error) {
	ctx, cancel := context.WithTimeout(ctx, t.requestTimeout)
	defer cancel()

	// 目录不携带值，etcd 要求 value 为空
	if opts.Dir {
		value = ""
	}
	resp, err := t.kapi.Set(ctx, key, value, &client.SetOptions{
		TTL: opts.TTL,
		Dir: opts.Dir,
	})
	if err != nil {
		return nil, classifyError(err, false)
	}
	return nodeFromResponse(resp)
}

// Delete 删除键，recursive 时连同整棵子树。
func (t *v2Transport) Delete(ctx context.Context, key string, recursive bool) (*Node, error) {
	ctx, cancel := context.WithTimeout(ctx, t.requestTimeout)
	defer cancel()

	resp, err := t.kapi.Delete(ctx, key, &client.DeleteOptions{Recursive: recursive})
	if err != nil {
		return nil, classifyError(err, false)
	}
	return nodeFromResponse(resp)
}

// Close 释放空闲连接。v2 客户端本身没有连接句柄可关。
func (t *v2Transport) Close() error {
	t.httpTransport.CloseIdleConnections()
	return nil
}

// nodeFromResponse 把 etcd 响应转换为 Node。
// 成功响应缺少节点视为响应异常。
func nodeFromResponse(resp *client.Response) (*Node, error) {
	if resp == nil || resp.Node == nil {
		return nil, fmt.Errorf("%w: response has no node", ErrMalformedResponse)
	}
	return convertNode(resp.Node), nil
}

// convertNode 递归转换 etcd v2 节点。
func convertNode(n *client.Node) *Node {
	node := &Node{
		Key:           n.Key,
		Value:         n.Value,
		Dir:           n.Dir,
		ModifiedIndex: n.ModifiedIndex,
		TTL:           n.TTL,
	}
	if len(n.Nodes) > 0 {
		node.Children = make([]*Node, 0, len(n.Nodes))
		for _, child := range n.Nodes {
			node.Children = append(node.Children, convertNode(child))
		}
	}
	return node
}

// classifyError 把 etcd v2 客户端的原始错误归一到封闭分类。
//
// 同一个读超时条件按语境消歧：wait=true 的请求超时是正常的监听到期
// (ErrWatchTimeout)；普通请求超时说明服务端不可达 (ErrConnectionFailed)。
// 无法归类的错误原样返回（调用上层记录后透传，fail loud）。
func classifyError(err error, wait bool) error {
	var etcdErr client.Error
	if errors.As(err, &etcdErr) {
		switch etcdErr.Code {
		case client.ErrorCodeKeyNotFound:
			return fmt.Errorf("%w: %s", ErrKeyNotFound, etcdErr.Cause)
		case client.ErrorCodeNotFile:
			return fmt.Errorf("%w (%s)", ErrNotFile, etcdErr.Cause)
		case client.ErrorCodeNotDir:
			return fmt.Errorf("%w (%s)", ErrNotDir, etcdErr.Cause)
		case client.ErrorCodeRootROnly:
			return fmt.Errorf("%w (%s)", ErrRootReadOnly, etcdErr.Cause)
		case client.ErrorCodeDirNotEmpty:
			return fmt.Errorf("%w (%s)", ErrDirNotEmpty, etcdErr.Cause)
		}
		return err
	}

	if errors.Is(err, context.Canceled) {
		// 调用方主动取消，不属于任何失败分类
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		if wait {
			return fmt.Errorf("%w: %w", ErrWatchTimeout, err)
		}
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if errors.Is(err, client.ErrInvalidJSON) || errors.Is(err, client.ErrEmptyBody) {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if errors.Is(err, client.ErrClusterUnavailable) || errors.Is(err, client.ErrNoEndpoints) {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	var clusterErr *client.ClusterError
	if errors.As(err, &clusterErr) {
		return fmt.Errorf("%w: %s", ErrConnectionFailed, clusterErr.Detail())
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return err
}
