package verify

import "regexp"

// OTP 扫描模式，按优先级排列：带标签的 6 位数字优先于裸 6 位数字。
//
// 注意：这里扫描的是邮件正文中人类可读的验证码，与 Deriver 推导的
// 邮箱访问校验码是两回事。
var otpPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)verification code\D{0,12}(\d{6})(?:\D|$)`),
	regexp.MustCompile(`验证码\D{0,12}(\d{6})(?:\D|$)`),
	regexp.MustCompile(`(?i)\bcode\D{0,12}(\d{6})(?:\D|$)`),
	regexp.MustCompile(`(?i)\botp\D{0,12}(\d{6})(?:\D|$)`),
	regexp.MustCompile(`(?i)\bpin\D{0,12}(\d{6})(?:\D|$)`),
}

// 兜底：任意恰好 6 位的数字串
var bareOTPPattern = regexp.MustCompile(`(?:^|\D)(\d{6})(?:\D|$)`)

// ExtractOTP 从自由文本中提取 6 位验证码。
//
// 按优先级依次尝试带标签的模式，全部未命中时回退到裸 6 位数字。
func ExtractOTP(text string) (string, bool) {
	for _, p := range otpPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return m[1], true
		}
	}
	if m := bareOTPPattern.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	return "", false
}
