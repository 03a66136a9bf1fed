package domain

import "time"

// APIToken 自动化网关的持有者令牌。
//
// 令牌可用 = 激活 且 (无次数上限 或 已用次数<上限) 且 (无过期时间 或 未过期)。
type APIToken struct {
	ID         string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Token      string     `json:"token" gorm:"type:varchar(64);uniqueIndex;not null"` // 创建后仅以掩码形式展示
	Name       string     `json:"name" gorm:"type:varchar(100)"`
	UsageCount int64      `json:"usageCount" gorm:"default:0"`
	UsageLimit *int64     `json:"usageLimit,omitempty"`
	IsActive   bool       `json:"isActive" gorm:"default:true"`
	CreatedAt  time.Time  `json:"createdAt"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}

// Usable 判断令牌在指定时间点是否可用。
func (t *APIToken) Usable(now time.Time) bool {
	if !t.IsActive {
		return false
	}
	if t.UsageLimit != nil && t.UsageCount >= *t.UsageLimit {
		return false
	}
	if t.ExpiresAt != nil && !now.Before(*t.ExpiresAt) {
		return false
	}
	return true
}

// MaskedToken 返回掩码后的令牌字符串（保留前4位与后4位）。
func (t *APIToken) MaskedToken() string {
	if len(t.Token) <= 8 {
		return "********"
	}
	return t.Token[:4] + "****" + t.Token[len(t.Token)-4:]
}

// TokenUsage 记录自动化网关的一次成功调用（轻量审计）。
type TokenUsage struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TokenID   string    `json:"tokenId" gorm:"type:varchar(36);index;not null"`
	Action    string    `json:"action" gorm:"type:varchar(40)"`
	SourceIP  string    `json:"sourceIp" gorm:"type:varchar(45)"`
	UserAgent string    `json:"userAgent" gorm:"type:varchar(255)"`
	CreatedAt time.Time `json:"createdAt"`
}
