package domain

import (
	"time"
)

// OwnerType 邮箱归属类型
type OwnerType string

const (
	OwnerTypeUser OwnerType = "user" // 注册用户的邮箱
	OwnerTypePool OwnerType = "pool" // 测试邮箱池预置的邮箱
)

// Mailbox 表示临时邮箱的业务实体。
//
// 过期邮箱保持可读（只读浏览），但不再接收新邮件；
// 新邮件的拦截由收件协作方负责，不在本核心内实现。
type Mailbox struct {
	ID        string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email     string     `json:"email" gorm:"type:varchar(255);uniqueIndex"`
	LocalPart string     `json:"localPart" gorm:"type:varchar(255)"`
	Domain    string     `json:"domain" gorm:"type:varchar(100);index"`
	OwnerID   *string    `json:"ownerId,omitempty" gorm:"type:varchar(36);index"` // 归属ID（匿名邮箱为nil）
	OwnerType *OwnerType `json:"ownerType,omitempty" gorm:"type:varchar(16)"`
	IsActive  bool       `json:"isActive" gorm:"default:true;index"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Expired 判断邮箱在指定时间点是否已过期。
func (m *Mailbox) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && !m.ExpiresAt.After(now)
}
