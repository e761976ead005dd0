package treekv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	retry "github.com/avast/retry-go/v5"
)

// Client 层级键空间的 etcd 客户端。
//
// Client 自身不持有锁也不缓存任何键值状态，每次操作都往返远端；
// 多 goroutine 并发使用的安全性取决于底层传输（内置的 etcd v2 传输
// 是并发安全的）。需要同时监听多个键时，调用方在各自的 goroutine
// 里分别调用 Watch。
type Client struct {
	transport Transport
	config    *Config
	logger    *slog.Logger
	closed    atomic.Bool
}

// NewClient 创建客户端。
//
// 错误：
//   - ErrNilConfig: config 为 nil
//   - 配置校验错误（ErrNoHost/ErrInvalidPort/ErrPartialAuth/…）
//   - TLS 证书加载错误
//   - 启用健康检查且检查失败时为 ErrConnectionFailed
func NewClient(config *Config, opts ...Option) (*Client, error) {
	if config == nil {
		return nil, ErrNilConfig
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	cfg := config.applyDefaults()

	transport := o.transport
	if transport == nil {
		var err error
		transport, err = newV2Transport(cfg)
		if err != nil {
			return nil, err
		}
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		transport: transport,
		config:    cfg,
		logger:    logger,
	}

	if o.healthCheck {
		if err := c.healthCheck(context.Background(), o); err != nil {
			closeErr := transport.Close()
			return nil, errors.Join(err, closeErr)
		}
	}

	return c, nil
}

// NewClientFromOptions 从嵌套 options 结构解析配置并创建客户端。
// 等价于 ResolveConfig + NewClient 的组合入口。
func NewClientFromOptions(source map[string]any, profile string, opts ...Option) (*Client, error) {
	return NewClient(ResolveConfig(source, profile), opts...)
}

// healthCheck 对根路径做读取验证连通性，带有限次重试。
// 根目录永远存在，键不存在不会出现；任何分类过的读失败都视为不可达。
func (c *Client) healthCheck(ctx context.Context, o *options) error {
	ctx, cancel := context.WithTimeout(ctx, o.healthTimeout)
	defer cancel()

	err := retry.New(
		retry.Context(ctx),
		retry.Attempts(o.healthAttempts),
	).Do(func() error {
		_, err := c.transport.Read(ctx, "/", ReadOptions{})
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: health check: %w", ErrConnectionFailed, err)
	}
	return nil
}

// Close 关闭客户端并释放底层连接。关闭后所有操作返回失败哨兵。
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil // 已经关闭
	}
	return c.transport.Close()
}

// isClosed 检查客户端是否已关闭。
func (c *Client) isClosed() bool {
	return c.closed.Load()
}
