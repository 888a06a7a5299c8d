package sqlguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripFences(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"无围栏", "SELECT * FROM c", "SELECT * FROM c"},
		{"sql 围栏", "```sql\nSELECT * FROM c\n```", "SELECT * FROM c"},
		{"裸围栏", "```\nSELECT * FROM c\n```", "SELECT * FROM c"},
		{"大写标记", "```SQL\nSELECT 1\n```", "SELECT 1"},
		{"两端空白", "  SELECT 1  ", "SELECT 1"},
		{"空串", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StripFences(tc.in))
		})
	}
}

func TestStripFences_Idempotent(t *testing.T) {
	inputs := []string{
		"```sql\nSELECT TOP 10 * FROM c ORDER BY c.id DESC\n```",
		"SELECT VALUE COUNT(1) FROM c",
		"```\n```",
	}
	for _, in := range inputs {
		once := StripFences(in)
		assert.Equal(t, once, StripFences(once))
	}
}
