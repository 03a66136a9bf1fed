package domain

import (
	"errors"
	"strings"
)

// 验证相关的错误定义
var (
	ErrInvalidEmail     = errors.New("invalid email format")
	ErrEmailTooLong     = errors.New("email address too long")
	ErrLocalPartTooLong = errors.New("local part too long (max 64 chars)")
	ErrDomainTooLong    = errors.New("domain too long (max 253 chars)")
)

// RFC 5322 邮箱地址长度限制
const (
	MaxEmailLength     = 254 // 整个邮箱地址最大长度
	MaxLocalPartLength = 64  // 本地部分最大长度(@前面)
	MaxDomainLength    = 253 // 域名最大长度
)

// SplitEmail 将邮箱地址拆分为本地部分与域名。
//
// 验证网关只要求 local@domain 两段均非空；更严格的字符集校验
// 由创建邮箱的协作方负责。
func SplitEmail(email string) (localPart, domainPart string, err error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || len(email) > MaxEmailLength {
		return "", "", ErrInvalidEmail
	}

	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", "", ErrInvalidEmail
	}

	localPart = email[:at]
	domainPart = email[at+1:]

	if len(localPart) > MaxLocalPartLength {
		return "", "", ErrLocalPartTooLong
	}
	if len(domainPart) > MaxDomainLength {
		return "", "", ErrDomainTooLong
	}
	return localPart, domainPart, nil
}

// ValidateEmail 验证邮箱地址格式。
func ValidateEmail(email string) error {
	_, _, err := SplitEmail(email)
	return err
}
