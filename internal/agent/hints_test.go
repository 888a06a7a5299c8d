package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsGreeting(t *testing.T) {
	greetings := []string{
		"hi", "Hello", "hey!", "thanks!", "Thank you.", "good morning",
		"Good    Evening", "ok", "bye", "  greetings  ",
	}
	for _, g := range greetings {
		assert.True(t, IsGreeting(g), g)
	}

	questions := []string{
		"hi, how many offices are in Miami?",
		"show hello world records",
		"list regions",
		"",
	}
	for _, q := range questions {
		assert.False(t, IsGreeting(q), q)
	}
}

func TestTemporalWindow(t *testing.T) {
	today := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	from, to, ok := TemporalWindow("how many sales last month", today)
	assert.True(t, ok)
	assert.Equal(t, "2024-02-01", from)
	assert.Equal(t, "2024-03-01", to)

	from, to, ok = TemporalWindow("orders THIS MONTH please", today)
	assert.True(t, ok)
	assert.Equal(t, "2024-03-01", from)
	assert.Equal(t, "2024-04-01", to)

	from, to, ok = TemporalWindow("totals for last year", today)
	assert.True(t, ok)
	assert.Equal(t, "2023-01-01", from)
	assert.Equal(t, "2024-01-01", to)

	from, to, ok = TemporalWindow("activity in the past 30 days", today)
	assert.True(t, ok)
	assert.Equal(t, "2024-02-14", from)
	assert.Equal(t, "2024-03-16", to)

	_, _, ok = TemporalWindow("how many offices in Miami", today)
	assert.False(t, ok)
}

func TestWantsRecords(t *testing.T) {
	assert.True(t, wantsRecords("show me the offices"))
	assert.True(t, wantsRecords("LIST regions"))
	assert.True(t, wantsRecords("can you retrieve recent sales"))
	assert.False(t, wantsRecords("how many offices are there"))
}
