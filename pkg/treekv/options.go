package treekv

import (
	"log/slog"
	"time"
)

// 健康检查默认值。
const (
	defaultHealthTimeout  = 10 * time.Second
	defaultHealthAttempts = 3
)

// options 内部选项结构。
type options struct {
	logger         *slog.Logger
	transport      Transport
	healthCheck    bool
	healthTimeout  time.Duration
	healthAttempts uint
}

// defaultOptions 返回默认选项。
func defaultOptions() *options {
	return &options{
		healthTimeout:  defaultHealthTimeout,
		healthAttempts: defaultHealthAttempts,
	}
}

// Option 定义客户端配置选项。
type Option func(*options)

// WithLogger 设置诊断日志的输出对象。
// 默认使用 slog.Default()。所有失败路径都会带操作名与键名记录日志。
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTransport 注入自定义传输层，替代内置的 etcd v2 实现。
// 主要用于测试；注入后连接配置中的主机/端口/TLS 字段不再生效。
func WithTransport(t Transport) Option {
	return func(o *options) {
		if t != nil {
			o.transport = t
		}
	}
}

// WithHealthCheck 创建后执行连通性检查。
// 启用时会对根路径做一次读取验证 etcd 可达，带有限次重试；
// 全部失败则 NewClient 返回 ErrConnectionFailed。
// timeout 为整个检查（含重试）的超时时间，默认 10 秒。
func WithHealthCheck(enabled bool, timeout time.Duration) Option {
	return func(o *options) {
		o.healthCheck = enabled
		if timeout > 0 {
			o.healthTimeout = timeout
		}
	}
}
