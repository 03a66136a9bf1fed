package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailpool/backend/internal/domain"
	"mailpool/backend/internal/ledger"
	"mailpool/backend/internal/storage"
	"mailpool/backend/internal/verify"
)

// ErrPoolRecordNotFound 测试邮箱记录不存在
var ErrPoolRecordNotFound = errors.New("test mailbox record not found")

// 标记注册时写入的固定额度标识，与自动化客户端约定一致
const registeredCount = "125"

// MessageWithOTP 自动化导出用的邮件视图，附带扫描出的验证码
type MessageWithOTP struct {
	domain.Message
	OTP string `json:"otp,omitempty"`
}

// RegistrationResult 标记注册的结果。
// 余额同步是尽力而为的，失败只体现在标志位上。
type RegistrationResult struct {
	Record               *domain.TestMailboxRecord `json:"record"`
	CreditBalanceUpdated bool                      `json:"creditBalanceUpdated"`
	CreditBalanceError   string                    `json:"creditBalanceError,omitempty"`
}

// PoolService 测试邮箱池服务，服务自动化网关的各个动作。
type PoolService struct {
	store        storage.Store
	deriver      *verify.Deriver
	synchronizer *ledger.Synchronizer // 为 nil 时跳过余额同步
	claimStrict  bool
	claimTTL     time.Duration
	log          *zap.Logger
}

// NewPoolService 创建测试邮箱池服务
func NewPoolService(
	store storage.Store,
	deriver *verify.Deriver,
	synchronizer *ledger.Synchronizer,
	claimStrict bool,
	claimTTL time.Duration,
	log *zap.Logger,
) *PoolService {
	return &PoolService{
		store:        store,
		deriver:      deriver,
		synchronizer: synchronizer,
		claimStrict:  claimStrict,
		claimTTL:     claimTTL,
		log:          log,
	}
}

// ListAvailable 返回可领取的测试邮箱。
//
// 默认模式只读不预留，并发客户端可能拿到同一批记录；
// 严格模式下改为原子领取，占用 claimTTL 后自动释放。
func (s *PoolService) ListAvailable(limit int) ([]domain.TestMailboxRecord, error) {
	if s.claimStrict {
		return s.store.ClaimAvailablePoolRecords(limit, time.Now().UTC(), s.claimTTL)
	}
	return s.store.ListAvailablePoolRecords(limit)
}

// ListAll 返回池中全部记录，含已注册与已售出的。
func (s *PoolService) ListAll() ([]domain.TestMailboxRecord, error) {
	return s.store.ListAllPoolRecords()
}

// MessagesFor 返回指定邮箱的邮件，逐封扫描六位验证码。
func (s *PoolService) MessagesFor(email string, limit int) ([]MessageWithOTP, error) {
	mailbox, err := s.store.GetMailboxByEmail(email)
	if err != nil {
		if errors.Is(err, storage.ErrMailboxNotFound) {
			return nil, ErrMailboxNotFound
		}
		return nil, err
	}

	messages, err := s.store.ListMessages(mailbox.ID, limit)
	if err != nil {
		return nil, err
	}

	out := make([]MessageWithOTP, 0, len(messages))
	for _, msg := range messages {
		item := MessageWithOTP{Message: msg}
		text := msg.Text
		if text == "" {
			text = msg.HTML
		}
		if otp, ok := verify.ExtractOTP(text); ok {
			item.OTP = otp
		}
		out = append(out, item)
	}
	return out, nil
}

// MarkRegistered 将记录标记为已注册（单向，幂等），随后尽力
// 同步一次账本余额。余额同步失败不回滚注册标记。
func (s *PoolService) MarkRegistered(ctx context.Context, email string, ledgerLink *string) (*RegistrationResult, error) {
	record, err := s.store.MarkPoolRecordRegistered(email, storage.PoolRegistration{
		LedgerLink: ledgerLink,
		Count:      registeredCount,
		At:         time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, storage.ErrPoolRecordNotFound) {
			return nil, ErrPoolRecordNotFound
		}
		return nil, err
	}

	result := &RegistrationResult{Record: record}
	if s.synchronizer == nil || record.UsageLedgerLink == nil || *record.UsageLedgerLink == "" {
		return result, nil
	}

	if _, err := s.synchronizer.RefreshBalance(ctx, record); err != nil {
		s.log.Warn("注册后余额同步失败",
			zap.String("email", email),
			zap.Error(err))
		result.CreditBalanceError = err.Error()
		return result, nil
	}

	result.CreditBalanceUpdated = true
	// 重新读取，让响应携带刚写入的余额
	if fresh, err := s.store.GetPoolRecordByEmail(email); err == nil {
		result.Record = fresh
	}
	return result, nil
}

// UpdateCreditBalance 对单条记录手动触发一次余额同步。
func (s *PoolService) UpdateCreditBalance(ctx context.Context, email string) (*domain.TestMailboxRecord, error) {
	record, err := s.store.GetPoolRecordByEmail(email)
	if err != nil {
		if errors.Is(err, storage.ErrPoolRecordNotFound) {
			return nil, ErrPoolRecordNotFound
		}
		return nil, err
	}

	if s.synchronizer == nil {
		return nil, ledger.ErrLedgerUnavailable
	}
	if _, err := s.synchronizer.RefreshBalance(ctx, record); err != nil {
		return nil, err
	}
	return s.store.GetPoolRecordByEmail(email)
}

// CreateRecord 向池中加入一条新记录，校验码在生成时预计算。
// 同时建立对应的邮箱目录项，使收件路径立即可用。
func (s *PoolService) CreateRecord(email string, mailboxTTL time.Duration) (*domain.TestMailboxRecord, error) {
	local, dom, err := domain.SplitEmail(email)
	if err != nil {
		return nil, err
	}
	normalized := local + "@" + dom

	now := time.Now().UTC()
	record := &domain.TestMailboxRecord{
		ID:               uuid.New().String(),
		Email:            normalized,
		VerificationCode: s.deriver.Derive(local),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.SavePoolRecord(record); err != nil {
		return nil, err
	}

	ownerType := domain.OwnerTypePool
	mailbox := &domain.Mailbox{
		ID:        uuid.New().String(),
		Email:     normalized,
		LocalPart: local,
		Domain:    dom,
		OwnerID:   &record.ID,
		OwnerType: &ownerType,
		IsActive:  true,
		CreatedAt: now,
	}
	if mailboxTTL > 0 {
		expires := now.Add(mailboxTTL)
		mailbox.ExpiresAt = &expires
	}
	if err := s.store.SaveMailbox(mailbox); err != nil && !errors.Is(err, storage.ErrEmailExists) {
		return nil, err
	}
	return record, nil
}
