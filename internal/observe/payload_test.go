package observe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsZero(t *testing.T) {
	cases := []struct {
		name string
		obs  string
		want bool
	}{
		{"计数零", `{"results": [0]}`, true},
		{"空列表", `{"results": []}`, true},
		{"count 字段为零", `{"count": 0}`, true},
		{"再编码一层的零", `"{\"results\": [0]}"`, true},
		{"计数为正", `{"results": [3]}`, false},
		{"非空列表", `{"results": [{"id": 1}]}`, false},
		{"count 为正", `{"count": 5}`, false},
		{"错误载荷", `{"error": "boom"}`, false},
		{"非 JSON 文本", `no rows`, false},
		{"空串", ``, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsZero(tc.obs))
		})
	}
}

func TestExtractCount(t *testing.T) {
	n, ok := ExtractCount(`{"results": [3]}`)
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	// 普通列表取长度
	n, ok = ExtractCount(`{"results": [{"id": 1}, {"id": 2}]}`)
	assert.True(t, ok)
	assert.Equal(t, 2, n)

	n, ok = ExtractCount(`{"count": 5}`)
	assert.True(t, ok)
	assert.Equal(t, 5, n)

	// 再编码一层
	n, ok = ExtractCount(`"{\"results\": [7]}"`)
	assert.True(t, ok)
	assert.Equal(t, 7, n)

	_, ok = ExtractCount(`{"error": "boom"}`)
	assert.False(t, ok)

	_, ok = ExtractCount(`not json`)
	assert.False(t, ok)

	// 单元素浮点截断取整
	n, ok = ExtractCount(`{"results": [3.5]}`)
	assert.True(t, ok)
	assert.Equal(t, 3, n)
}
