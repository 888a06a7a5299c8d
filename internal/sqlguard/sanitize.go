// Package sqlguard 对 Agent 生成的 Cosmos SQL 文本做安全处理：
// 去除代码围栏、注入 latest 守卫条件、规范化等值过滤键，
// 以及位置字段回退所需的查询改写。
//
// 所有函数都是纯文本变换，基于生成查询的表层语法做模式匹配，
// 不解析 SQL。嵌套括号、注释、同字段多谓词等形态不在保证范围内。
package sqlguard

import (
	"regexp"
	"strings"
)

// fenceRE 匹配行首的 ```/```sql 开栏与行尾的 ``` 收栏。
var fenceRE = regexp.MustCompile("(?im)^\\s*```(?:sql)?\\s*|\\s*```\\s*$")

// StripFences 去掉查询文本两端的 Markdown 代码围栏并修剪空白。
// 幂等：对已干净的文本是 no-op。
func StripFences(s string) string {
	return strings.TrimSpace(fenceRE.ReplaceAllString(s, ""))
}
