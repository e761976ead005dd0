package treekv

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"time"

	kjson "github.com/knadh/koanf/parsers/json"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// options 结构中识别的键名。
const (
	optHost       = "etcd.host"
	optPort       = "etcd.port"
	optUsername   = "etcd.username"
	optPassword   = "etcd.password"
	optCACert     = "etcd.ca"
	optClientKey  = "etcd.client_key"
	optClientCert = "etcd.client_cert"
)

// 默认配置值。
const (
	defaultHost           = "127.0.0.1"
	defaultPort           = 2379
	defaultRequestTimeout = 5 * time.Second
	defaultDialTimeout    = 5 * time.Second
)

// Config etcd 连接配置。
// 在 NewClient 时读取一次，客户端生命周期内不可变。
//
// 推荐使用 DefaultConfig() 或 ResolveConfig() 获取配置，再按需覆盖字段：
//
//	cfg := treekv.DefaultConfig()
//	cfg.Host = "etcd.example.com"
//	client, err := treekv.NewClient(cfg)
type Config struct {
	// Host etcd 主机，默认 "127.0.0.1"。
	Host string `json:"host" yaml:"host"`

	// Port etcd 端口，默认 2379。
	Port int `json:"port" yaml:"port"`

	// Username 用户名（可选）。必须与 Password 成对配置。
	Username string `json:"username" yaml:"username"`

	// Password 密码（可选）。必须与 Username 成对配置。
	Password string `json:"password" yaml:"password"`

	// CACert CA 证书文件路径（可选）。
	// 单独配置时启用服务端校验 TLS；与 ClientCert/ClientKey
	// 同时配置时启用双向 TLS。
	CACert string `json:"ca" yaml:"ca"`

	// ClientCert 客户端证书文件路径（可选）。必须与 ClientKey 成对配置，
	// 且要求 CACert 已配置。
	ClientCert string `json:"clientCert" yaml:"clientCert"`

	// ClientKey 客户端私钥文件路径（可选）。必须与 ClientCert 成对配置。
	ClientKey string `json:"clientKey" yaml:"clientKey"`

	// RequestTimeout 非等待请求（读/写/删）的超时。
	// 零值时使用默认值 5 秒。等待型读（Watch 长轮询）不受此限制，
	// 其时限完全由调用方的 timeout 参数决定。
	RequestTimeout time.Duration `json:"requestTimeout" yaml:"requestTimeout"`

	// DialTimeout 建立 TCP 连接的超时。
	// 零值时使用默认值 5 秒。
	DialTimeout time.Duration `json:"dialTimeout" yaml:"dialTimeout"`
}

// DefaultConfig 返回带有默认值的配置（127.0.0.1:2379，无认证，无 TLS）。
func DefaultConfig() *Config {
	return &Config{
		Host:           defaultHost,
		Port:           defaultPort,
		RequestTimeout: defaultRequestTimeout,
		DialTimeout:    defaultDialTimeout,
	}
}

// ResolveConfig 从嵌套的 options 结构解析连接配置。
//
// 合并优先级从低到高：source["pillar"]["master"] < source["pillar"] <
// source 顶层。指定 profile 时仅使用合并视图中该 profile 子结构内的键，
// 不与顶层配置再合并。
//
// 识别的键：etcd.host、etcd.port、etcd.username、etcd.password、
// etcd.ca、etcd.client_key、etcd.client_cert。未出现的键使用默认值。
//
// 设计决策: 这是一个纯函数，解析只在客户端构造前发生一次，产出不可变
// 的 Config；不存在任何全局状态或延迟查找。需要覆盖个别字段时，直接
// 修改返回的 Config 再传给 NewClient。
func ResolveConfig(source map[string]any, profile string) *Config {
	pillar, _ := source["pillar"].(map[string]any)
	master, _ := pillar["master"].(map[string]any)

	merged := make(map[string]any, len(master)+len(pillar)+len(source))
	maps.Copy(merged, master)
	maps.Copy(merged, pillar)
	maps.Copy(merged, source)

	conf := merged
	if profile != "" {
		// profile 是整体替换而非叠加：只认该 profile 内的键
		conf, _ = merged[profile].(map[string]any)
	}

	cfg := DefaultConfig()
	if v, ok := stringOption(conf, optHost); ok {
		cfg.Host = v
	}
	if v, ok := intOption(conf, optPort); ok {
		cfg.Port = v
	}
	cfg.Username, _ = stringOption(conf, optUsername)
	cfg.Password, _ = stringOption(conf, optPassword)
	cfg.CACert, _ = stringOption(conf, optCACert)
	cfg.ClientKey, _ = stringOption(conf, optClientKey)
	cfg.ClientCert, _ = stringOption(conf, optClientCert)
	return cfg
}

// stringOption 读取字符串选项。非字符串标量按 fmt.Sprint 转换。
func stringOption(conf map[string]any, key string) (string, bool) {
	v, ok := conf[key]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		if s == "" {
			return "", false
		}
		return s, true
	}
	switch v.(type) {
	case map[string]any, []any:
		return "", false
	}
	return fmt.Sprint(v), true
}

// intOption 读取整数选项。
// YAML/JSON 解码器产出的数值类型不一致（int/int64/float64/string），统一归一。
func intOption(conf map[string]any, key string) (int, bool) {
	switch v := conf[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// LoadOptions 从 YAML/JSON 文件加载 options 结构，供 ResolveConfig 使用。
// 根据扩展名选择解析器（.yaml/.yml/.json）。
func LoadOptions(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("treekv: read options file: %w", err)
	}

	var parser koanf.Parser
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		parser = kyaml.Parser()
	case ".json":
		parser = kjson.Parser()
	default:
		return nil, fmt.Errorf("%w: unsupported options format %q", ErrInvalidInput, filepath.Ext(path))
	}
	return OptionsFromBytes(data, parser)
}

// OptionsFromBytes 从内存数据解析 options 结构。
// 适用于 K8s ConfigMap 等非文件来源。
//
// 设计决策: koanf 以 "/" 为分隔符加载，避免把 "etcd.host" 这类
// 字面量键名误拆成嵌套路径（键名里的 "." 是字面内容，不是层级）。
func OptionsFromBytes(data []byte, parser koanf.Parser) (map[string]any, error) {
	k := koanf.New("/")
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return nil, fmt.Errorf("treekv: parse options: %w", err)
	}
	return k.Raw(), nil
}

// Validate 验证配置有效性。
// 检查主机/端口，以及两条成对约束：用户名与密码必须同时出现或同时
// 缺省；客户端证书与私钥必须同时出现或同时缺省，且依赖 CA 证书。
func (c *Config) Validate() error {
	if c.Host == "" {
		return ErrNoHost
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	if (c.Username == "") != (c.Password == "") {
		return ErrPartialAuth
	}
	if (c.ClientCert == "") != (c.ClientKey == "") {
		return ErrPartialClientCert
	}
	if c.ClientCert != "" && c.CACert == "" {
		return ErrClientCertWithoutCA
	}
	return nil
}

// applyDefaults 应用默认值，返回新的配置（不修改原配置）。
func (c *Config) applyDefaults() *Config {
	cfg := *c
	if cfg.Host == "" {
		cfg.Host = defaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	return &cfg
}

// secure 是否启用 TLS。配置了 CA 证书即走 https。
func (c *Config) secure() bool {
	return c.CACert != ""
}

// endpoint 返回 etcd 端点 URL。
func (c *Config) endpoint() string {
	scheme := "http"
	if c.secure() {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

// buildTLSConfig 构建 TLS 配置。
// 未配置 CA 时返回 nil（明文连接）；仅 CA 时做服务端校验；
// CA + 客户端证书/私钥时启用双向 TLS。
func (c *Config) buildTLSConfig() (*tls.Config, error) {
	if !c.secure() {
		return nil, nil
	}

	caCert, err := os.ReadFile(c.CACert)
	if err != nil {
		return nil, fmt.Errorf("treekv: read ca cert: %w", err)
	}
	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("treekv: parse ca cert %q failed", c.CACert)
	}

	tlsConfig := &tls.Config{
		RootCAs:    caPool,
		MinVersion: tls.VersionTLS12,
	}

	if c.ClientCert != "" && c.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("treekv: load client cert: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}
