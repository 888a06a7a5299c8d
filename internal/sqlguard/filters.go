package sqlguard

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// 过滤器校验失败的哨兵错误，调用方用 errors.Is 区分。
var (
	// ErrInvalidFilterFormat 表示输入无法被还原为一个对象。
	ErrInvalidFilterFormat = errors.New("filters must be an object or a JSON object string")
	// ErrNonStringFilterKey 表示过滤键不是文本。
	ErrNonStringFilterKey = errors.New("filter keys must be strings")
	// ErrOperatorNotAllowed 表示过滤键携带了比较/范围/模式运算符。
	ErrOperatorNotAllowed = errors.New("operators are not allowed in equality filters")
)

// operatorTokens 是等值过滤键中禁止出现的运算符片段。
// 注意 ">"/"<" 同时覆盖 ">="/"<="。
var operatorTokens = []string{" like", ">", "<", ">=", "<=", "!=", " between ", " in "}

// NormalizeFilters 把松散形态的过滤输入还原为 field -> 标量 的映射。
// 接受三种形态：对象本身、JSON 编码的对象字符串、以及包了一层
// {"filters": {...}} / {"filter": {...}} 信封的对象。
// 键做规范化：去空白、去单双引号、去掉行别名前缀 "c."。
func NormalizeFilters(raw any) (map[string]any, error) {
	obj, err := coerceObject(raw)
	if err != nil {
		return nil, err
	}

	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[CleanFilterKey(k)] = v
	}
	return out, nil
}

func coerceObject(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return map[string]any{}, nil
	case string:
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFilterFormat, err)
		}
		return coerceObject(decoded)
	case map[string]any:
		return unwrapEnvelope(v), nil
	case map[any]any:
		// 非 JSON 来源（如 YAML 解码）可能给出 any 键。
		out := make(map[string]any, len(v))
		for k, val := range v {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("%w: got %T", ErrNonStringFilterKey, k)
			}
			out[ks] = val
		}
		return unwrapEnvelope(out), nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrInvalidFilterFormat, raw)
	}
}

// unwrapEnvelope 展开单层 filters/filter 信封。
func unwrapEnvelope(m map[string]any) map[string]any {
	if inner, ok := m["filters"].(map[string]any); ok {
		return inner
	}
	if inner, ok := m["filter"].(map[string]any); ok {
		return inner
	}
	return m
}

// CleanFilterKey 规范化单个过滤键：修剪空白、剥去单双引号、
// 剥去行别名前缀 "c."。
func CleanFilterKey(key string) string {
	k := strings.TrimSpace(key)
	k = strings.Trim(k, `"'`)
	k = strings.TrimPrefix(k, "c.")
	return k
}

// HasOperatorKey 报告过滤键是否携带运算符：内嵌空格，
// 或包含任何比较/范围/模式运算符片段。检查在小写化后的
// 原始键文本上进行。
func HasOperatorKey(key string) bool {
	l := strings.ToLower(key)
	if strings.Contains(l, " ") {
		return true
	}
	for _, tok := range operatorTokens {
		if strings.Contains(l, tok) {
			return true
		}
	}
	return false
}

// CountQueryFromFilters 把等值过滤映射转成 SELECT VALUE COUNT(1) 查询。
// enforceLatest 为真时守卫条件排在最前；键 "latest" 本身跳过以免重复。
// 字符串值转义单引号，其余标量按 JSON 字面量输出。
func CountQueryFromFilters(filters map[string]any, enforceLatest bool) string {
	clauses := make([]string, 0, len(filters)+1)
	if enforceLatest {
		clauses = append(clauses, "c.latest = 0")
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if k == "latest" {
			continue
		}
		v := filters[k]
		if s, ok := v.(string); ok {
			s = strings.ReplaceAll(s, "'", "''")
			clauses = append(clauses, fmt.Sprintf("c.%s = '%s'", k, s))
			continue
		}
		lit, err := json.Marshal(v)
		if err != nil {
			lit = []byte("null")
		}
		clauses = append(clauses, fmt.Sprintf("c.%s = %s", k, lit))
	}

	where := "1=1"
	if len(clauses) > 0 {
		where = strings.Join(clauses, " AND ")
	}
	return "SELECT VALUE COUNT(1) FROM c WHERE " + where
}
