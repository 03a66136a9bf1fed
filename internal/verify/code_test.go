package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriver_Derive(t *testing.T) {
	d := NewDeriver("unit-test-secret", ModeLegacy)

	t.Run("相同前缀推导结果一致", func(t *testing.T) {
		first := d.Derive("ronald.howard")
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, d.Derive("ronald.howard"))
		}
	})

	t.Run("结果恒为6位数字", func(t *testing.T) {
		prefixes := []string{"a", "ronald.howard", "测试用户", "x1.y2_z3", "", "UPPER.CASE"}
		for _, p := range prefixes {
			code := d.Derive(p)
			assert.Len(t, code, 6, "prefix: %q", p)
			for _, c := range code {
				assert.True(t, c >= '0' && c <= '9', "prefix: %q code: %q", p, code)
			}
		}
	})

	t.Run("规范化后前缀等价", func(t *testing.T) {
		assert.Equal(t, d.Derive("ronald.howard"), d.Derive("  Ronald.Howard  "))
	})

	t.Run("不同前缀通常得到不同校验码", func(t *testing.T) {
		seen := make(map[string]int)
		prefixes := []string{"alice", "bob", "carol", "dave", "erin", "frank", "grace", "heidi"}
		for _, p := range prefixes {
			seen[d.Derive(p)]++
		}
		// 不要求无碰撞，但 8 个前缀全部撞到一个码说明分布坏掉了
		assert.Greater(t, len(seen), 1)
	})

	t.Run("不同密钥得到不同映射", func(t *testing.T) {
		other := NewDeriver("another-secret-value", ModeLegacy)
		// 单个前缀允许巧合相等，批量全部相等则密钥未参与运算
		same := 0
		for _, p := range []string{"alice", "bob", "carol", "dave"} {
			if d.Derive(p) == other.Derive(p) {
				same++
			}
		}
		assert.Less(t, same, 4)
	})
}

func TestDeriver_HMACMode(t *testing.T) {
	d := NewDeriver("unit-test-secret", ModeHMAC)

	t.Run("确定性且为6位数字", func(t *testing.T) {
		code := d.Derive("ronald.howard")
		assert.Len(t, code, 6)
		assert.Equal(t, code, d.Derive("ronald.howard"))
	})

	t.Run("与legacy模式映射不同", func(t *testing.T) {
		legacy := NewDeriver("unit-test-secret", ModeLegacy)
		diff := 0
		for _, p := range []string{"alice", "bob", "carol", "dave", "erin"} {
			if legacy.Derive(p) != d.Derive(p) {
				diff++
			}
		}
		assert.Greater(t, diff, 0)
	})
}

func TestFallbackCode(t *testing.T) {
	t.Run("降级算法确定且为6位", func(t *testing.T) {
		code := fallbackCode("ronald.howard")
		assert.Len(t, code, 6)
		assert.Equal(t, code, fallbackCode("ronald.howard"))
	})

	t.Run("空前缀返回000000", func(t *testing.T) {
		assert.Equal(t, "000000", fallbackCode(""))
	})
}
