package sqlguard

import (
	"regexp"
	"strings"
)

var (
	latestGuardRE = regexp.MustCompile(`(?i)\bc\.latest\s*=\s*0\b`)
	whereRE       = regexp.MustCompile(`(?i)\bwhere\b`)
	// splitRE 匹配可以承载新 WHERE 子句的第一个边界关键字。
	splitRE = regexp.MustCompile(`(?i)\border\s+by\b|\boffset\b|\blimit\b`)
)

// HasLatestGuard 报告查询中是否已存在 c.latest = 0 守卫（大小写不敏感）。
func HasLatestGuard(query string) bool {
	return latestGuardRE.MatchString(query)
}

// InjectLatestGuard 在 enforce 为真且守卫缺失时，把 c.latest = 0 注入查询。
// 插入规则按顺序判定，顺序不可调换：
//  1. 已有 WHERE：守卫紧跟 WHERE 之后，与原条件 AND 连接（守卫在前）；
//  2. 有 ORDER BY / OFFSET / LIMIT：在第一个边界关键字之前插入新 WHERE；
//  3. 否则在末尾追加 WHERE 子句。
func InjectLatestGuard(query string, enforce bool) string {
	if !enforce {
		return query
	}
	if HasLatestGuard(query) {
		return query
	}

	if loc := whereRE.FindStringIndex(query); loc != nil {
		return query[:loc[1]] + " c.latest = 0 AND" + query[loc[1]:]
	}

	if loc := splitRE.FindStringIndex(query); loc != nil {
		head := strings.TrimRight(query[:loc[0]], " \t\r\n")
		return head + " WHERE c.latest = 0 " + query[loc[0]:]
	}

	return strings.TrimRight(query, " \t\r\n") + " WHERE c.latest = 0"
}
