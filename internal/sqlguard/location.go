package sqlguard

import (
	"fmt"
	"regexp"
	"strings"
)

// 位置字段回退用到的两种谓词形态：
//   等值      c.Field = 'X'
//   包含匹配  c.Field LIKE '%X%'
// 提取时等值优先，与改写共用一套模式。

func fieldEqRE(field string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`(?i)(c\.%s\s*=\s*')([^']+)(')`, regexp.QuoteMeta(field)))
}

func fieldLikeRE(field string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`(?i)(c\.%s\s+LIKE\s*'%%)([^']+)(%%')`, regexp.QuoteMeta(field)))
}

// ReferencesField 报告查询文本中是否出现 c.<field> 引用。
func ReferencesField(query, field string) bool {
	re := regexp.MustCompile(fmt.Sprintf(`(?i)\bc\.%s\b`, regexp.QuoteMeta(field)))
	return re.MatchString(query)
}

// ExtractFieldTerm 从查询中取出绑定在 field 上的检索词。
// 先尝试等值形态，再尝试 LIKE 形态，取第一个命中。
func ExtractFieldTerm(query, field string) (string, bool) {
	if m := fieldEqRE(field).FindStringSubmatch(query); m != nil {
		return strings.TrimSpace(m[2]), true
	}
	if m := fieldLikeRE(field).FindStringSubmatch(query); m != nil {
		return strings.TrimSpace(m[2]), true
	}
	return "", false
}

// ReplaceFieldPredicate 把 oldField 上的谓词整体替换为
// c.<newField> LIKE '%term%'。找不到可替换谓词时原样返回。
func ReplaceFieldPredicate(query, oldField, newField, term string) string {
	like := fmt.Sprintf("c.%s LIKE '%%%s%%'", newField, term)
	if loc := fieldEqRE(oldField).FindStringIndex(query); loc != nil {
		return query[:loc[0]] + like + query[loc[1]:]
	}
	if loc := fieldLikeRE(oldField).FindStringIndex(query); loc != nil {
		return query[:loc[0]] + like + query[loc[1]:]
	}
	return query
}
