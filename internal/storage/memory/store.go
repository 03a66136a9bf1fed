package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"mailpool/backend/internal/domain"
	"mailpool/backend/internal/storage"
)

// Store 使用内存保存全部实体数据，主要用于开发验证与测试。
type Store struct {
	mu          sync.RWMutex
	mailboxes   map[string]*domain.Mailbox // mailboxID -> mailbox
	byEmail     map[string]string          // email -> mailboxID
	messages    map[string]map[string]*domain.Message
	poolRecords map[string]*domain.TestMailboxRecord // email -> record
	tokens      map[string]*domain.APIToken          // tokenID -> token
	bySecret    map[string]string                    // secret -> tokenID
	usages      map[string][]*domain.TokenUsage      // tokenID -> audit records
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		mailboxes:   make(map[string]*domain.Mailbox),
		byEmail:     make(map[string]string),
		messages:    make(map[string]map[string]*domain.Message),
		poolRecords: make(map[string]*domain.TestMailboxRecord),
		tokens:      make(map[string]*domain.APIToken),
		bySecret:    make(map[string]string),
		usages:      make(map[string][]*domain.TokenUsage),
	}
}

// ========== MailboxRepository ==========

// SaveMailbox 保存邮箱信息。
func (s *Store) SaveMailbox(mailbox *domain.Mailbox) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(mailbox.Email)
	if existing, ok := s.byEmail[email]; ok && existing != mailbox.ID {
		return storage.ErrEmailExists
	}

	cp := *mailbox
	s.mailboxes[mailbox.ID] = &cp
	s.byEmail[email] = mailbox.ID
	return nil
}

// GetMailboxByEmail 根据邮箱地址获取邮箱。
func (s *Store) GetMailboxByEmail(email string) (*domain.Mailbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, storage.ErrMailboxNotFound
	}
	cp := *s.mailboxes[id]
	return &cp, nil
}

// SetMailboxActive 更新邮箱激活标记。
func (s *Store) SetMailboxActive(id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mailbox, ok := s.mailboxes[id]
	if !ok {
		return storage.ErrMailboxNotFound
	}
	mailbox.IsActive = active
	return nil
}

// DeleteExpiredMailboxes 删除过期邮箱及其邮件，返回删除数量。
func (s *Store) DeleteExpiredMailboxes(before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, mailbox := range s.mailboxes {
		if mailbox.ExpiresAt != nil && mailbox.ExpiresAt.Before(before) {
			delete(s.byEmail, strings.ToLower(mailbox.Email))
			delete(s.mailboxes, id)
			delete(s.messages, id)
			count++
		}
	}
	return count, nil
}

// ========== MessageRepository ==========

// SaveMessage 保存邮件。
func (s *Store) SaveMessage(message *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mailboxes[message.MailboxID]; !ok {
		return storage.ErrMailboxNotFound
	}
	if s.messages[message.MailboxID] == nil {
		s.messages[message.MailboxID] = make(map[string]*domain.Message)
	}
	cp := *message
	s.messages[message.MailboxID][message.ID] = &cp
	return nil
}

// ListMessages 按接收时间倒序返回邮件。
func (s *Store) ListMessages(mailboxID string, limit int) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.mailboxes[mailboxID]; !ok {
		return nil, storage.ErrMailboxNotFound
	}

	out := make([]domain.Message, 0, len(s.messages[mailboxID]))
	for _, msg := range s.messages[mailboxID] {
		out = append(out, *msg)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ReceivedAt.After(out[j].ReceivedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountMessages 返回邮箱内邮件总数。
func (s *Store) CountMessages(mailboxID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.mailboxes[mailboxID]; !ok {
		return 0, storage.ErrMailboxNotFound
	}
	return int64(len(s.messages[mailboxID])), nil
}

// MarkMessageRead 标记邮件为已读。
func (s *Store) MarkMessageRead(mailboxID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[mailboxID][messageID]
	if !ok {
		return storage.ErrMessageNotFound
	}
	msg.IsRead = true
	return nil
}

// ========== PoolRepository ==========

// SavePoolRecord 保存测试邮箱记录。
func (s *Store) SavePoolRecord(record *domain.TestMailboxRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *record
	s.poolRecords[strings.ToLower(record.Email)] = &cp
	return nil
}

// GetPoolRecordByEmail 根据邮箱地址获取测试邮箱记录。
func (s *Store) GetPoolRecordByEmail(email string) (*domain.TestMailboxRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.poolRecords[strings.ToLower(email)]
	if !ok {
		return nil, storage.ErrPoolRecordNotFound
	}
	cp := *record
	return &cp, nil
}

// ListAvailablePoolRecords 返回可领取的记录（未注册且未售出）。
func (s *Store) ListAvailablePoolRecords(limit int) ([]domain.TestMailboxRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.availableLocked(limit)
	return out, nil
}

// ClaimAvailablePoolRecords 原子领取：筛选可用记录并打上领取时间戳。
// 领取超过 claimTTL 未注册的记录重新视为可领取。
func (s *Store) ClaimAvailablePoolRecords(limit int, now time.Time, claimTTL time.Duration) ([]domain.TestMailboxRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.TestMailboxRecord, 0, limit)
	for _, record := range s.sortedPoolLocked() {
		if limit > 0 && len(out) >= limit {
			break
		}
		if !record.Available() {
			continue
		}
		if record.ClaimedAt != nil && now.Sub(*record.ClaimedAt) < claimTTL {
			continue
		}
		at := now
		record.ClaimedAt = &at
		out = append(out, *record)
	}
	return out, nil
}

// ListAllPoolRecords 返回全部测试邮箱记录。
func (s *Store) ListAllPoolRecords() ([]domain.TestMailboxRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.TestMailboxRecord, 0, len(s.poolRecords))
	for _, record := range s.sortedPoolLocked() {
		out = append(out, *record)
	}
	return out, nil
}

// ListPoolRecordsWithLedgerLink 返回持有账本链接的记录（批量同步用）。
func (s *Store) ListPoolRecordsWithLedgerLink() ([]domain.TestMailboxRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.TestMailboxRecord, 0)
	for _, record := range s.sortedPoolLocked() {
		if record.UsageLedgerLink != nil && *record.UsageLedgerLink != "" {
			out = append(out, *record)
		}
	}
	return out, nil
}

// MarkPoolRecordRegistered 标记记录为已注册（单向转换）。
func (s *Store) MarkPoolRecordRegistered(email string, reg storage.PoolRegistration) (*domain.TestMailboxRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.poolRecords[strings.ToLower(email)]
	if !ok {
		return nil, storage.ErrPoolRecordNotFound
	}

	registered := domain.RegistrationRegistered
	unsold := domain.SaleUnsold
	record.RegStatus = &registered
	record.SaleState = &unsold
	record.IsAutoRegistered = true
	record.Count = reg.Count
	if reg.LedgerLink != nil {
		record.UsageLedgerLink = reg.LedgerLink
	}
	record.UpdatedAt = reg.At

	cp := *record
	return &cp, nil
}

// UpdatePoolCreditBalance 刷新余额字段。
func (s *Store) UpdatePoolCreditBalance(email string, balance int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.poolRecords[strings.ToLower(email)]
	if !ok {
		return storage.ErrPoolRecordNotFound
	}
	record.CreditBalance = &balance
	record.CreditBalanceAt = &at
	record.UpdatedAt = at
	return nil
}

// availableLocked 返回可领取记录快照，调用方需持有读锁。
func (s *Store) availableLocked(limit int) []domain.TestMailboxRecord {
	out := make([]domain.TestMailboxRecord, 0)
	for _, record := range s.sortedPoolLocked() {
		if limit > 0 && len(out) >= limit {
			break
		}
		if record.Available() {
			out = append(out, *record)
		}
	}
	return out
}

// sortedPoolLocked 返回按创建时间排序的记录指针，保证遍历顺序稳定。
func (s *Store) sortedPoolLocked() []*domain.TestMailboxRecord {
	records := make([]*domain.TestMailboxRecord, 0, len(s.poolRecords))
	for _, r := range s.poolRecords {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].Email < records[j].Email
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records
}

// ========== TokenRepository ==========

// SaveToken 保存令牌。
func (s *Store) SaveToken(token *domain.APIToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *token
	s.tokens[token.ID] = &cp
	s.bySecret[token.Token] = token.ID
	return nil
}

// GetToken 根据 ID 获取令牌。
func (s *Store) GetToken(id string) (*domain.APIToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens[id]
	if !ok {
		return nil, storage.ErrTokenNotFound
	}
	cp := *token
	return &cp, nil
}

// GetTokenBySecret 根据令牌串获取令牌。
func (s *Store) GetTokenBySecret(secret string) (*domain.APIToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.bySecret[secret]
	if !ok {
		return nil, storage.ErrTokenNotFound
	}
	cp := *s.tokens[id]
	return &cp, nil
}

// ListTokens 返回全部令牌。
func (s *Store) ListTokens() ([]*domain.APIToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.APIToken, 0, len(s.tokens))
	for _, token := range s.tokens {
		cp := *token
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// DeleteToken 硬删除令牌。
func (s *Store) DeleteToken(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[id]
	if !ok {
		return storage.ErrTokenNotFound
	}
	delete(s.bySecret, token.Token)
	delete(s.tokens, id)
	delete(s.usages, id)
	return nil
}

// IncrementTokenUsage 自增使用计数。
func (s *Store) IncrementTokenUsage(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[id]
	if !ok {
		return storage.ErrTokenNotFound
	}
	token.UsageCount++
	token.LastUsedAt = &at
	return nil
}

// ResetTokenUsage 将使用计数清零。
func (s *Store) ResetTokenUsage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[id]
	if !ok {
		return storage.ErrTokenNotFound
	}
	token.UsageCount = 0
	return nil
}

// SetTokenActive 切换令牌激活状态。
func (s *Store) SetTokenActive(id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[id]
	if !ok {
		return storage.ErrTokenNotFound
	}
	token.IsActive = active
	return nil
}

// SaveTokenUsage 追加审计记录。
func (s *Store) SaveTokenUsage(usage *domain.TokenUsage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *usage
	s.usages[usage.TokenID] = append(s.usages[usage.TokenID], &cp)
	return nil
}

// ListTokenUsages 返回指定令牌最近的审计记录。
func (s *Store) ListTokenUsages(tokenID string, limit int) ([]domain.TokenUsage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.usages[tokenID]
	out := make([]domain.TokenUsage, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, *records[i])
	}
	return out, nil
}

// Close 关闭存储（内存实现为空操作）。
func (s *Store) Close() error { return nil }

// Health 健康检查（内存实现恒为健康）。
func (s *Store) Health() error { return nil }
