// Package treekv 提供面向层级键空间的 etcd (v2 API) 客户端封装。
//
// treekv 面向把嵌套配置树映射到扁平键空间的场景，提供：
//   - 统一的读/写/删/监听操作 (Get/Set/Ls/Tree/Delete/Watch)
//   - 嵌套树与扁平键的双向转换 (Flatten / Update / Tree)
//   - 长轮询 Watch 的超时归一化：超时回落为"未变化 + 当前值"
//   - 封闭的错误分类：键不存在 / 连接失败 / 监听超时 / 节点类型冲突 / 响应异常
//
// # 配置来源
//
// 连接参数既可以直接构造 Config，也可以从一份嵌套的 options 结构解析
// （优先级从低到高：pillar.master < pillar < 顶层；指定 profile 时仅使用
// 该 profile 内的键）：
//
//	opts, _ := treekv.LoadOptions("/etc/app/options.yaml")
//	client, err := treekv.NewClientFromOptions(opts, "my_etcd_config")
//
// # 错误语义
//
// Read 是唯一向调用方透出错误分类的底层操作；Get/Ls/Tree/Write/Delete
// 等便捷操作把可预期的失败（键不存在、连接失败、类型冲突）折叠为
// 哨兵返回值并记录日志，调用方无需逐错误分支处理。
package treekv
