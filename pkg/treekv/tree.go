package treekv

import (
	"fmt"
	"strings"
)

// TreeNode 嵌套树的节点：要么是叶子（一个字符串值），要么是目录
// （子节点映射）。两种形态穷尽，核心路径上不做运行时类型探测。
type TreeNode interface {
	isTreeNode()
}

// Leaf 叶子节点，持有一个字符串值。
type Leaf string

func (Leaf) isTreeNode() {}

// Directory 目录节点，可以为空。
type Directory map[string]TreeNode

func (Directory) isTreeNode() {}

// FlatEntry 扁平映射中的一项。
// Dir 为 true 时表示一个空目录标记，Value 无意义。
type FlatEntry struct {
	Value string
	Dir   bool
}

// FlatMap 绝对键路径到扁平项的映射。
type FlatMap map[string]FlatEntry

// Flatten 把嵌套树展开为扁平键映射，base 作为所有键的前缀。
//
// 每个叶子产出一项；空目录产出显式的目录标记项（否则它在扁平视图里
// 会凭空消失）；非空目录自身不产出，只由其后代的路径前缀隐含。
// 路径片段边界上的多余斜杠会被归一。产出顺序无意义。
//
// 例如 base 为 "/salt" 时：
//
//	{"key1": "value1", "key2": {"sub1": "s1"}}
//
// 展开为：
//
//	{"/salt/key1": "value1", "/salt/key2/sub1": "s1"}
func Flatten(tree Directory, base string) FlatMap {
	flat := make(FlatMap)
	flattenInto(flat, tree, base)
	return flat
}

func flattenInto(flat FlatMap, tree Directory, base string) {
	base = strings.Trim(base, "/")
	if len(tree) == 0 {
		flat["/"+base] = FlatEntry{Dir: true}
		return
	}
	for k, v := range tree {
		k = strings.Trim(k, "/")
		p := "/" + k
		if base != "" {
			p = "/" + base + p
		}
		switch node := v.(type) {
		case Directory:
			flattenInto(flat, node, p)
		case Leaf:
			flat[p] = FlatEntry{Value: string(node)}
		}
	}
}

// FromMap 把解码后的通用 map（YAML/JSON 反序列化的产物）转换为 Directory。
// 顶层输入不是 map 时返回 ErrInvalidInput。非字符串的标量值按
// fmt.Sprint 转为字符串（存储侧的值只有字符串一种形态）。
func FromMap(fields any) (Directory, error) {
	m, ok := fields.(map[string]any)
	if !ok {
		if d, ok := fields.(Directory); ok {
			return d, nil
		}
		return nil, fmt.Errorf("%w: fields is %T, not a map", ErrInvalidInput, fields)
	}
	dir := make(Directory, len(m))
	for k, v := range m {
		switch value := v.(type) {
		case map[string]any:
			sub, err := FromMap(value)
			if err != nil {
				return nil, err
			}
			dir[k] = sub
		case Directory:
			dir[k] = value
		case TreeNode:
			dir[k] = value
		case string:
			dir[k] = Leaf(value)
		case nil:
			dir[k] = Leaf("")
		default:
			dir[k] = Leaf(fmt.Sprint(value))
		}
	}
	return dir, nil
}
