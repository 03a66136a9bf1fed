package verify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf16"
)

// Mode 校验码推导模式
type Mode string

const (
	// ModeLegacy 与历史数据兼容的滚动多项式哈希
	ModeLegacy Mode = "legacy"
	// ModeHMAC 加固模式：HMAC-SHA256 截断取模
	ModeHMAC Mode = "hmac"
)

// Deriver 根据邮箱本地部分推导 6 位校验码。
//
// 推导是纯函数：相同前缀永远得到相同校验码，因此无需为每个
// 邮箱持久化秘密。推导永不失败，主路径异常时落入降级算法。
type Deriver struct {
	secret string
	mode   Mode
}

// NewDeriver 创建校验码推导器。
func NewDeriver(secret string, mode Mode) *Deriver {
	if mode != ModeHMAC {
		mode = ModeLegacy
	}
	return &Deriver{secret: secret, mode: mode}
}

// Derive 推导 6 位校验码。
//
// 前缀先做规范化（去空白、转小写）。推导结果不得出现在任何
// 面向调用方的错误信息中。
func (d *Deriver) Derive(prefix string) (code string) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))

	// 任一路径 panic 时落入降级算法，保证推导总是有结果
	defer func() {
		if r := recover(); r != nil {
			code = fallbackCode(prefix)
		}
	}()

	if d.mode == ModeHMAC {
		return d.deriveHMAC(prefix)
	}
	return d.deriveLegacy(prefix)
}

// deriveLegacy 滚动多项式哈希：h = h*31 + unit，按 32 位有符号截断，
// 对 UTF-16 码元序列计算，取绝对值后对 1e6 取模。
func (d *Deriver) deriveLegacy(prefix string) string {
	units := utf16.Encode([]rune(prefix + d.secret))

	var h int32
	for _, u := range units {
		h = h*31 + int32(u)
	}

	v := int64(h)
	if v < 0 {
		v = -v
	}
	return fmt.Sprintf("%06d", v%1000000)
}

// deriveHMAC 标准 MAC 截断：HMAC-SHA256 前 8 字节对 1e6 取模。
func (d *Deriver) deriveHMAC(prefix string) string {
	mac := hmac.New(sha256.New, []byte(d.secret))
	mac.Write([]byte(prefix))
	sum := mac.Sum(nil)
	return fmt.Sprintf("%06d", binary.BigEndian.Uint64(sum[:8])%1000000)
}

// fallbackCode 降级算法：sum(unit(i)*(i+1)) 对 1e6 取模。
func fallbackCode(prefix string) string {
	units := utf16.Encode([]rune(prefix))

	var sum int64
	for i, u := range units {
		sum += int64(u) * int64(i+1)
	}
	if sum < 0 {
		sum = -sum
	}
	return fmt.Sprintf("%06d", sum%1000000)
}
