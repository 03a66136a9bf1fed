package sql

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"mailpool/backend/internal/domain"
	"mailpool/backend/internal/storage"
)

// SaveToken 保存令牌。
func (s *Store) SaveToken(token *domain.APIToken) error {
	return s.gormDB.Save(token).Error
}

// GetToken 根据 ID 获取令牌。
func (s *Store) GetToken(id string) (*domain.APIToken, error) {
	var token domain.APIToken
	err := s.gormDB.Where("id = ?", id).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// GetTokenBySecret 根据令牌串获取令牌。
func (s *Store) GetTokenBySecret(secret string) (*domain.APIToken, error) {
	var token domain.APIToken
	err := s.gormDB.Where("token = ?", secret).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// ListTokens 返回全部令牌。
func (s *Store) ListTokens() ([]*domain.APIToken, error) {
	var tokens []*domain.APIToken
	if err := s.gormDB.Order("created_at ASC").Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

// DeleteToken 硬删除令牌及其审计记录。
func (s *Store) DeleteToken(id string) error {
	return s.gormDB.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", id).Delete(&domain.APIToken{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return storage.ErrTokenNotFound
		}
		return tx.Where("token_id = ?", id).Delete(&domain.TokenUsage{}).Error
	})
}

// IncrementTokenUsage 原子自增使用计数并更新最后使用时间。
func (s *Store) IncrementTokenUsage(id string, at time.Time) error {
	result := s.gormDB.Model(&domain.APIToken{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"usage_count":  gorm.Expr("usage_count + 1"),
			"last_used_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrTokenNotFound
	}
	return nil
}

// ResetTokenUsage 将使用计数清零。
func (s *Store) ResetTokenUsage(id string) error {
	if _, err := s.GetToken(id); err != nil {
		return err
	}
	return s.gormDB.Model(&domain.APIToken{}).
		Where("id = ?", id).
		Update("usage_count", 0).Error
}

// SetTokenActive 切换令牌激活状态。
func (s *Store) SetTokenActive(id string, active bool) error {
	if _, err := s.GetToken(id); err != nil {
		return err
	}
	return s.gormDB.Model(&domain.APIToken{}).
		Where("id = ?", id).
		Update("is_active", active).Error
}

// SaveTokenUsage 追加审计记录。
func (s *Store) SaveTokenUsage(usage *domain.TokenUsage) error {
	return s.gormDB.Create(usage).Error
}

// ListTokenUsages 返回指定令牌最近的审计记录。
func (s *Store) ListTokenUsages(tokenID string, limit int) ([]domain.TokenUsage, error) {
	var usages []domain.TokenUsage
	query := s.gormDB.Where("token_id = ?", tokenID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&usages).Error; err != nil {
		return nil, err
	}
	return usages, nil
}
