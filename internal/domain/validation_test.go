package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitEmail(t *testing.T) {
	t.Run("正常地址拆分成功", func(t *testing.T) {
		local, dom, err := SplitEmail("ronald.howard@temp.mail")
		assert.NoError(t, err)
		assert.Equal(t, "ronald.howard", local)
		assert.Equal(t, "temp.mail", dom)
	})

	t.Run("地址统一转为小写", func(t *testing.T) {
		local, dom, err := SplitEmail("  Ronald.Howard@Temp.Mail ")
		assert.NoError(t, err)
		assert.Equal(t, "ronald.howard", local)
		assert.Equal(t, "temp.mail", dom)
	})

	t.Run("无效格式返回错误", func(t *testing.T) {
		cases := []string{"", "no-at-sign", "@temp.mail", "user@", "   "}
		for _, c := range cases {
			_, _, err := SplitEmail(c)
			assert.ErrorIs(t, err, ErrInvalidEmail, "input: %q", c)
		}
	})

	t.Run("本地部分超长返回错误", func(t *testing.T) {
		_, _, err := SplitEmail(strings.Repeat("a", 65) + "@temp.mail")
		assert.ErrorIs(t, err, ErrLocalPartTooLong)
	})
}
