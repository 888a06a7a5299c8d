// Package observe 解读远端工具返回的观察文本。
//
// 远端返回形态不稳定：可能是 JSON 对象，也可能是被再编码一次的
// JSON 字符串。这里统一做宽容解码，再在解码结果上回答两个问题：
// 观察是否代表零命中、观察中能否取出一个计数。
package observe

import (
	"encoding/json"
	"math"
	"strings"
)

// decode 宽容地把观察文本还原成对象。
// 字符串结果再解一层，最多两层；失败返回 nil。
func decode(observation string) map[string]any {
	raw := strings.TrimSpace(observation)
	if raw == "" {
		return nil
	}

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil
	}
	if s, ok := v.(string); ok {
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return nil
		}
	}
	m, _ := v.(map[string]any)
	return m
}

// asInt 把 JSON 数值还原为整数，非整的浮点不算。
func asInt(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// IsZero 报告观察是否代表零命中。三种形态任一成立即为真：
// results == [0]、results 为空列表、count == 0。
func IsZero(observation string) bool {
	m := decode(observation)
	if m == nil {
		return false
	}

	if results, ok := m["results"].([]any); ok {
		if len(results) == 0 {
			return true
		}
		if len(results) == 1 {
			if n, ok := asInt(results[0]); ok && n == 0 {
				return true
			}
		}
	}
	if n, ok := asInt(m["count"]); ok && n == 0 {
		return true
	}
	return false
}

// ExtractCount 从观察中取计数。
// results 是单个数值元素的列表时取该数值（浮点截断取整）；
// 是普通列表时取长度；否则退回顶层 count 字段。
// 取不到时第二个返回值为假。
func ExtractCount(observation string) (int, bool) {
	m := decode(observation)
	if m == nil {
		return 0, false
	}

	if results, ok := m["results"].([]any); ok {
		if len(results) == 1 {
			if f, ok := results[0].(float64); ok {
				return int(f), true
			}
		}
		return len(results), true
	}
	if n, ok := asInt(m["count"]); ok {
		return n, true
	}
	return 0, false
}
