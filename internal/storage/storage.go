package storage

import (
	"errors"
	"time"

	"mailpool/backend/internal/domain"
)

var (
	// ErrMailboxNotFound 邮箱未找到错误
	ErrMailboxNotFound = errors.New("mailbox not found")
	// ErrMessageNotFound 邮件未找到错误
	ErrMessageNotFound = errors.New("message not found")
	// ErrPoolRecordNotFound 测试邮箱记录未找到错误
	ErrPoolRecordNotFound = errors.New("test mailbox record not found")
	// ErrTokenNotFound 令牌未找到错误
	ErrTokenNotFound = errors.New("api token not found")
	// ErrEmailExists 邮箱地址已存在错误
	ErrEmailExists = errors.New("email already exists")
)

// MailboxRepository 定义邮箱目录的数据存取操作。
type MailboxRepository interface {
	SaveMailbox(mailbox *domain.Mailbox) error
	GetMailboxByEmail(email string) (*domain.Mailbox, error)
	SetMailboxActive(id string, active bool) error
	DeleteExpiredMailboxes(before time.Time) (int, error)
}

// MessageRepository 定义邮件数据的只读存取操作。
type MessageRepository interface {
	SaveMessage(message *domain.Message) error
	// ListMessages 按接收时间倒序返回邮件，limit<=0 表示不限制
	ListMessages(mailboxID string, limit int) ([]domain.Message, error)
	CountMessages(mailboxID string) (int64, error)
	MarkMessageRead(mailboxID, messageID string) error
}

// PoolRegistration 描述一次注册标记要写入的字段。
type PoolRegistration struct {
	LedgerLink *string
	Count      string
	At         time.Time
}

// PoolRepository 定义测试邮箱池的数据存取操作。
type PoolRepository interface {
	SavePoolRecord(record *domain.TestMailboxRecord) error
	GetPoolRecordByEmail(email string) (*domain.TestMailboxRecord, error)
	// ListAvailablePoolRecords 返回未注册且未售出（含历史NULL）的记录，不做预留
	ListAvailablePoolRecords(limit int) ([]domain.TestMailboxRecord, error)
	// ClaimAvailablePoolRecords 严格模式：原子打上领取时间戳后返回
	ClaimAvailablePoolRecords(limit int, now time.Time, claimTTL time.Duration) ([]domain.TestMailboxRecord, error)
	ListAllPoolRecords() ([]domain.TestMailboxRecord, error)
	ListPoolRecordsWithLedgerLink() ([]domain.TestMailboxRecord, error)
	// MarkPoolRecordRegistered 单行更新：注册状态置为 registered（单向），
	// 售卖状态置为 unsold，isAutoRegistered=true；重复调用保持 registered
	MarkPoolRecordRegistered(email string, reg PoolRegistration) (*domain.TestMailboxRecord, error)
	// UpdatePoolCreditBalance 单行更新余额字段，不触碰生命周期状态
	UpdatePoolCreditBalance(email string, balance int, at time.Time) error
}

// TokenRepository 定义自动化令牌的数据存取操作。
type TokenRepository interface {
	SaveToken(token *domain.APIToken) error
	GetToken(id string) (*domain.APIToken, error)
	GetTokenBySecret(secret string) (*domain.APIToken, error)
	ListTokens() ([]*domain.APIToken, error)
	DeleteToken(id string) error
	// IncrementTokenUsage 原子自增使用计数并更新最后使用时间
	IncrementTokenUsage(id string, at time.Time) error
	ResetTokenUsage(id string) error
	SetTokenActive(id string, active bool) error
	SaveTokenUsage(usage *domain.TokenUsage) error
	ListTokenUsages(tokenID string, limit int) ([]domain.TokenUsage, error)
}

// Store 定义完整的存储接口。
type Store interface {
	MailboxRepository
	MessageRepository
	PoolRepository
	TokenRepository

	Close() error
	Health() error
}
