package ledger

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mailpool/backend/internal/domain"
	"mailpool/backend/internal/storage"
)

// Synchronizer 用量账本同步器。
//
// 同步是尽力而为的：单条记录的失败只记录日志，既不阻塞
// 注册标记流程，也不中断批量扫描。
type Synchronizer struct {
	resolver Resolver
	store    storage.PoolRepository
	log      *zap.Logger
}

// NewSynchronizer 创建账本同步器
func NewSynchronizer(resolver Resolver, store storage.PoolRepository, log *zap.Logger) *Synchronizer {
	return &Synchronizer{
		resolver: resolver,
		store:    store,
		log:      log,
	}
}

// RefreshBalance 对单条记录执行完整的两跳同步并持久化余额。
//
// 任意一跳失败时不写入任何字段，已有余额保持原值。
func (s *Synchronizer) RefreshBalance(ctx context.Context, record *domain.TestMailboxRecord) (int, error) {
	if record.UsageLedgerLink == nil || *record.UsageLedgerLink == "" {
		return 0, ErrInvalidLedgerLink
	}

	customerID, token, err := s.resolver.ResolveCustomer(ctx, *record.UsageLedgerLink)
	if err != nil {
		return 0, err
	}

	balance, err := s.resolver.FetchBalance(ctx, customerID, token)
	if err != nil {
		return 0, err
	}

	if err := s.store.UpdatePoolCreditBalance(record.Email, balance, time.Now().UTC()); err != nil {
		return 0, err
	}
	return balance, nil
}

// SweepAll 遍历所有带账本链接的记录并逐条刷新余额。
//
// 逐条串行执行，失败的记录跳过，返回成功与失败的条数。
func (s *Synchronizer) SweepAll(ctx context.Context) (synced, failed int) {
	records, err := s.store.ListPoolRecordsWithLedgerLink()
	if err != nil {
		s.log.Error("列出待同步账本记录失败", zap.Error(err))
		return 0, 0
	}

	for i := range records {
		if ctx.Err() != nil {
			s.log.Warn("账本批量同步被取消",
				zap.Int("synced", synced),
				zap.Int("failed", failed))
			return synced, failed
		}

		record := &records[i]
		balance, err := s.RefreshBalance(ctx, record)
		if err != nil {
			failed++
			s.log.Warn("账本余额同步失败",
				zap.String("email", record.Email),
				zap.Error(err))
			continue
		}

		synced++
		s.log.Debug("账本余额已同步",
			zap.String("email", record.Email),
			zap.Int("balance", balance))
	}

	if synced > 0 || failed > 0 {
		s.log.Info("账本批量同步完成",
			zap.Int("synced", synced),
			zap.Int("failed", failed))
	}
	return synced, failed
}
