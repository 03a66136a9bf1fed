package domain

import "time"

// Message 表示一封临时邮箱内的邮件。
//
// 本核心只读消费邮件数据；写入由收件协作方完成，已读标记在查看时更新。
type Message struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	MailboxID  string    `json:"mailboxId" gorm:"type:varchar(36);index;not null"`
	From       string    `json:"from" gorm:"type:varchar(255)"`
	To         string    `json:"to" gorm:"type:varchar(255)"`
	Subject    string    `json:"subject" gorm:"type:varchar(500)"`
	Text       string    `json:"text,omitempty" gorm:"type:text"`
	HTML       string    `json:"html,omitempty" gorm:"type:text"`
	IsRead     bool      `json:"isRead" gorm:"default:false;index"`
	CreatedAt  time.Time `json:"createdAt"`
	ReceivedAt time.Time `json:"receivedAt" gorm:"index"`
}
