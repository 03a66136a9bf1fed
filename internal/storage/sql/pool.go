package sql

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mailpool/backend/internal/domain"
	"mailpool/backend/internal/storage"
)

// availableCond 可领取条件：未注册且未售出，历史 NULL 数据分别视同
// unregistered/unsold。
const availableCond = "(registration_status IS NULL OR registration_status = ?) " +
	"AND (sale_status IS NULL OR sale_status = ?)"

// SavePoolRecord 保存测试邮箱记录。
func (s *Store) SavePoolRecord(record *domain.TestMailboxRecord) error {
	record.Email = strings.ToLower(record.Email)
	return s.gormDB.Save(record).Error
}

// GetPoolRecordByEmail 根据邮箱地址获取测试邮箱记录。
func (s *Store) GetPoolRecordByEmail(email string) (*domain.TestMailboxRecord, error) {
	var record domain.TestMailboxRecord
	err := s.gormDB.Where("email = ?", strings.ToLower(email)).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrPoolRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListAvailablePoolRecords 返回可领取的记录，不做预留。
func (s *Store) ListAvailablePoolRecords(limit int) ([]domain.TestMailboxRecord, error) {
	var records []domain.TestMailboxRecord
	query := s.gormDB.
		Where(availableCond, domain.RegistrationUnregistered, domain.SaleUnsold).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// ClaimAvailablePoolRecords 严格模式领取：行锁内筛选并打上领取时间戳，
// 使两个并发客户端不会拿到同一条记录。领取超过 claimTTL 未注册的记录
// 重新视为可领取。
func (s *Store) ClaimAvailablePoolRecords(limit int, now time.Time, claimTTL time.Duration) ([]domain.TestMailboxRecord, error) {
	var claimed []domain.TestMailboxRecord

	err := s.gormDB.Transaction(func(tx *gorm.DB) error {
		staleBefore := now.Add(-claimTTL)

		query := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(availableCond, domain.RegistrationUnregistered, domain.SaleUnsold).
			Where("claimed_at IS NULL OR claimed_at < ?", staleBefore).
			Order("created_at ASC")
		if limit > 0 {
			query = query.Limit(limit)
		}
		if err := query.Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}

		emails := make([]string, 0, len(claimed))
		for i := range claimed {
			claimed[i].ClaimedAt = &now
			emails = append(emails, claimed[i].Email)
		}
		return tx.Model(&domain.TestMailboxRecord{}).
			Where("email IN ?", emails).
			Update("claimed_at", now).Error
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// ListAllPoolRecords 返回全部测试邮箱记录。
func (s *Store) ListAllPoolRecords() ([]domain.TestMailboxRecord, error) {
	var records []domain.TestMailboxRecord
	if err := s.gormDB.Order("created_at ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// ListPoolRecordsWithLedgerLink 返回持有账本链接的记录。
func (s *Store) ListPoolRecordsWithLedgerLink() ([]domain.TestMailboxRecord, error) {
	var records []domain.TestMailboxRecord
	err := s.gormDB.
		Where("usage_ledger_link IS NOT NULL AND usage_ledger_link <> ''").
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// MarkPoolRecordRegistered 单行更新：注册状态置为 registered（单向），
// 重复调用保持 registered 不回退。
func (s *Store) MarkPoolRecordRegistered(email string, reg storage.PoolRegistration) (*domain.TestMailboxRecord, error) {
	email = strings.ToLower(email)

	// 先确认记录存在：MySQL 对无变化的 UPDATE 报告 0 行，
	// 不能用 RowsAffected 区分“不存在”与“重复标记”
	if _, err := s.GetPoolRecordByEmail(email); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"registration_status": domain.RegistrationRegistered,
		"sale_status":         domain.SaleUnsold,
		"is_auto_registered":  true,
		"count":               reg.Count,
		"updated_at":          reg.At,
	}
	if reg.LedgerLink != nil {
		updates["usage_ledger_link"] = *reg.LedgerLink
	}

	if err := s.gormDB.Model(&domain.TestMailboxRecord{}).
		Where("email = ?", email).
		Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.GetPoolRecordByEmail(email)
}

// UpdatePoolCreditBalance 单行更新余额字段，不触碰生命周期状态。
func (s *Store) UpdatePoolCreditBalance(email string, balance int, at time.Time) error {
	result := s.gormDB.Model(&domain.TestMailboxRecord{}).
		Where("email = ?", strings.ToLower(email)).
		Updates(map[string]interface{}{
			"credit_balance":            balance,
			"credit_balance_updated_at": at,
			"updated_at":                at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrPoolRecordNotFound
	}
	return nil
}
