package treekv

import (
	"errors"
	"fmt"
)

// 错误定义。
var (
	// ErrNilConfig 配置为空。
	ErrNilConfig = errors.New("treekv: config is nil")

	// ErrClientClosed 客户端已关闭。
	ErrClientClosed = errors.New("treekv: client is closed")

	// ErrEmptyKey 键名为空。
	ErrEmptyKey = errors.New("treekv: key is empty")

	// ErrKeyNotFound 键不存在。
	ErrKeyNotFound = errors.New("treekv: key not found")

	// ErrConnectionFailed 无法连接任何 etcd 端点（含重试耗尽）。
	ErrConnectionFailed = errors.New("treekv: connection failed")

	// ErrWatchTimeout 长轮询在超时时间内没有等到变更。
	// 与 ErrConnectionFailed 严格区分：同样的底层读超时，
	// 发生在 wait=true 的请求上归类为 ErrWatchTimeout，
	// 发生在普通读上归类为 ErrConnectionFailed。
	ErrWatchTimeout = errors.New("treekv: watch timed out")

	// ErrNodeTypeConflict 写入目标的既有节点类型（文件/目录）与请求不符。
	ErrNodeTypeConflict = errors.New("treekv: node type conflict")

	// ErrDirNotEmpty 目录非空，不能非递归删除。
	ErrDirNotEmpty = errors.New("treekv: directory not empty")

	// ErrMalformedResponse 服务端返回了无法解析的结果。
	ErrMalformedResponse = errors.New("treekv: malformed response")

	// ErrInvalidInput 输入不是期望的结构（如 Update 收到非 map 值）。
	ErrInvalidInput = errors.New("treekv: invalid input")
)

// ErrNodeTypeConflict 的细分。统一匹配 errors.Is(err, ErrNodeTypeConflict)，
// 需要区分具体形态时再匹配细分哨兵。
var (
	// ErrNotFile 目标是目录，期望文件。
	ErrNotFile = fmt.Errorf("%w: not a file", ErrNodeTypeConflict)

	// ErrNotDir 目标是文件，期望目录。
	ErrNotDir = fmt.Errorf("%w: not a directory", ErrNodeTypeConflict)

	// ErrRootReadOnly 根节点只读，不可写入或删除。
	ErrRootReadOnly = fmt.Errorf("%w: root is read only", ErrNodeTypeConflict)
)

// 配置校验错误。
var (
	// ErrNoHost 未配置 etcd 主机。
	ErrNoHost = errors.New("treekv: no host configured")

	// ErrInvalidPort 端口号不在 1-65535 范围内。
	ErrInvalidPort = errors.New("treekv: invalid port")

	// ErrPartialAuth 用户名与密码必须成对出现。
	ErrPartialAuth = errors.New("treekv: username and password must be set together")

	// ErrPartialClientCert 客户端证书与私钥必须成对出现。
	ErrPartialClientCert = errors.New("treekv: client cert and key must be set together")

	// ErrClientCertWithoutCA 配置了客户端证书但缺少 CA 证书。
	ErrClientCertWithoutCA = errors.New("treekv: client cert requires ca cert")
)

// IsKeyNotFound 检查错误是否为键不存在。
func IsKeyNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}

// IsConnectionFailed 检查错误是否为连接失败。
func IsConnectionFailed(err error) bool {
	return errors.Is(err, ErrConnectionFailed)
}

// IsWatchTimeout 检查错误是否为监听超时。
func IsWatchTimeout(err error) bool {
	return errors.Is(err, ErrWatchTimeout)
}

// IsNodeTypeConflict 检查错误是否为节点类型冲突（含细分形态）。
func IsNodeTypeConflict(err error) bool {
	return errors.Is(err, ErrNodeTypeConflict)
}

// IsMalformedResponse 检查错误是否为响应异常。
func IsMalformedResponse(err error) bool {
	return errors.Is(err, ErrMalformedResponse)
}
