package service

import (
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"mailpool/backend/internal/domain"
	"mailpool/backend/internal/storage"
	"mailpool/backend/internal/verify"
)

var (
	// ErrCodeMismatch 校验码与推导结果不一致。
	// 错误信息绝不回显期望的校验码。
	ErrCodeMismatch = errors.New("verification code mismatch")
	// ErrMailboxNotFound 邮箱不存在或已停用
	ErrMailboxNotFound = errors.New("mailbox not found")
)

// VerifyResult 一次访问验证成功后返回的邮箱视图
type VerifyResult struct {
	Mailbox    *domain.Mailbox  `json:"mailbox"`
	Messages   []domain.Message `json:"messages"`
	TotalCount int64            `json:"totalCount"`
	IsExpired  bool             `json:"isExpired"`
}

// VerificationService 邮箱访问验证服务。
//
// 校验顺序固定：格式 -> 校验码 -> 存在性。校验码比对放在
// 存在性之前，不存在的邮箱配错误的码得到的是码不匹配，
// 避免通过错误类型探测邮箱是否存在。
type VerificationService struct {
	store        storage.Store
	deriver      *verify.Deriver
	messageLimit int
	log          *zap.Logger
}

// NewVerificationService 创建访问验证服务
func NewVerificationService(store storage.Store, deriver *verify.Deriver, messageLimit int, log *zap.Logger) *VerificationService {
	if messageLimit <= 0 {
		messageLimit = 50
	}
	return &VerificationService{
		store:        store,
		deriver:      deriver,
		messageLimit: messageLimit,
		log:          log,
	}
}

// Verify 校验邮箱地址与校验码，通过后返回邮箱及其邮件列表。
//
// limit<=0 时使用服务默认上限。过期邮箱仍可验证读取，结果中
// 带 IsExpired 标记。
func (s *VerificationService) Verify(email, code string, limit int) (*VerifyResult, error) {
	local, dom, err := domain.SplitEmail(email)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(code) != s.deriver.Derive(local) {
		s.log.Warn("校验码不匹配", zap.String("email", email))
		return nil, ErrCodeMismatch
	}

	mailbox, err := s.store.GetMailboxByEmail(local + "@" + dom)
	if err != nil {
		if errors.Is(err, storage.ErrMailboxNotFound) {
			return nil, ErrMailboxNotFound
		}
		return nil, err
	}
	if !mailbox.IsActive {
		return nil, ErrMailboxNotFound
	}

	if limit <= 0 || limit > s.messageLimit {
		limit = s.messageLimit
	}
	messages, err := s.store.ListMessages(mailbox.ID, limit)
	if err != nil {
		return nil, err
	}
	total, err := s.store.CountMessages(mailbox.ID)
	if err != nil {
		return nil, err
	}

	return &VerifyResult{
		Mailbox:    mailbox,
		Messages:   messages,
		TotalCount: total,
		IsExpired:  mailbox.Expired(time.Now().UTC()),
	}, nil
}

// DeriveCode 返回地址前缀对应的校验码。仅供受信任的内部
// 流程（批量生成、自动化导出）使用，绝不暴露在公开接口上。
func (s *VerificationService) DeriveCode(email string) (string, error) {
	local, _, err := domain.SplitEmail(email)
	if err != nil {
		return "", err
	}
	return s.deriver.Derive(local), nil
}
