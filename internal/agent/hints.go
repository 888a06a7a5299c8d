package agent

import (
	"regexp"
	"strings"
	"time"

	"github.com/wwwzy/CosmoAgent/internal/config"
)

// 纯寒暄输入直接用固定回复挡掉，不值得跑一整条 Agent 链路。
var greetingRE = regexp.MustCompile(`(?i)^(hi|hello|hey|greetings|good\s+(morning|afternoon|evening)|thanks?|thank\s+you|ok|okay|alright|bye|goodbye)[\s!.]*$`)

// IsGreeting 报告输入是否为纯寒暄。
func IsGreeting(input string) bool {
	return greetingRE.MatchString(strings.TrimSpace(input))
}

const dateLayout = "2006-01-02"

// todayFrom 解析配置的日期参照点，未配置或无法解析时取当前 UTC 日期。
func todayFrom(cfg config.AgentConfig) time.Time {
	if cfg.Today != "" {
		if t, err := time.Parse(dateLayout, cfg.Today); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}

// TemporalWindow 识别问题中的相对时间短语，返回半开区间 [start, end)。
// 识别不到时 ok 为假。
func TemporalWindow(question string, today time.Time) (start, end string, ok bool) {
	q := strings.ToLower(question)

	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)

	switch {
	case strings.Contains(q, "this month"):
		return monthStart.Format(dateLayout), monthStart.AddDate(0, 1, 0).Format(dateLayout), true
	case strings.Contains(q, "last month"):
		return monthStart.AddDate(0, -1, 0).Format(dateLayout), monthStart.Format(dateLayout), true
	case strings.Contains(q, "last year"):
		yearStart := time.Date(today.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		return yearStart.AddDate(-1, 0, 0).Format(dateLayout), yearStart.Format(dateLayout), true
	case strings.Contains(q, "last 30 days"), strings.Contains(q, "past 30 days"):
		day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
		return day.AddDate(0, 0, -30).Format(dateLayout), day.AddDate(0, 0, 1).Format(dateLayout), true
	}
	return "", "", false
}

var retrievalKeywords = []string{"show", "find", "list", "get", "retrieve"}

// wantsRecords 报告问题是否在要求取回记录，用于空回答的温和重试。
func wantsRecords(question string) bool {
	q := strings.ToLower(question)
	for _, kw := range retrievalKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}
