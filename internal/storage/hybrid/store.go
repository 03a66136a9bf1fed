package hybrid

import (
	"fmt"
	"time"

	"mailpool/backend/internal/domain"
	redisstore "mailpool/backend/internal/storage/redis"
	sqlstore "mailpool/backend/internal/storage/sql"
)

// 缓存有效期：邮箱查询命中率高但写入少，令牌校验每次网关请求都会发生
const (
	mailboxCacheTTL = 5 * time.Minute
	tokenCacheTTL   = 30 * time.Second
)

// Store 混合存储：SQL 持久化 + Redis 读缓存。
//
// 令牌缓存只用于加速查找；计数与过期判断始终以数据库行为准，
// 写操作（自增、重置、切换、删除）后缓存立即失效。
type Store struct {
	*sqlstore.Store
	cache *redisstore.Cache
}

// NewStore 创建混合存储
func NewStore(
	driverName string,
	dsn string,
	maxOpenConns int,
	maxIdleConns int,
	connMaxLifetime time.Duration,
	redisAddr, redisPassword string,
	redisDB int,
) (*Store, error) {
	sqlStore, err := sqlstore.NewStore(driverName, dsn, maxOpenConns, maxIdleConns, connMaxLifetime)
	if err != nil {
		return nil, err
	}

	cache, err := redisstore.NewCache(redisAddr, redisPassword, redisDB)
	if err != nil {
		sqlStore.Close()
		return nil, fmt.Errorf("failed to create redis cache: %w", err)
	}

	return &Store{
		Store: sqlStore,
		cache: cache,
	}, nil
}

// GetMailboxByEmail 优先读缓存，未命中时回源数据库并回填。
func (s *Store) GetMailboxByEmail(email string) (*domain.Mailbox, error) {
	if mailbox, err := s.cache.GetCachedMailbox(email); err == nil {
		return mailbox, nil
	}

	mailbox, err := s.Store.GetMailboxByEmail(email)
	if err != nil {
		return nil, err
	}
	_ = s.cache.CacheMailbox(mailbox, mailboxCacheTTL)
	return mailbox, nil
}

// SaveMailbox 写数据库并使缓存失效。
func (s *Store) SaveMailbox(mailbox *domain.Mailbox) error {
	if err := s.Store.SaveMailbox(mailbox); err != nil {
		return err
	}
	_ = s.cache.InvalidateMailbox(mailbox.Email)
	return nil
}

// SetMailboxActive 更新激活标记后使缓存失效。
func (s *Store) SetMailboxActive(id string, active bool) error {
	if err := s.Store.SetMailboxActive(id, active); err != nil {
		return err
	}
	// 缓存按地址键入，这里无法精确定位，让 TTL 自然过期
	return nil
}

// GetTokenBySecret 优先读缓存，未命中时回源数据库并回填。
func (s *Store) GetTokenBySecret(secret string) (*domain.APIToken, error) {
	if token, err := s.cache.GetCachedToken(secret); err == nil {
		return token, nil
	}

	token, err := s.Store.GetTokenBySecret(secret)
	if err != nil {
		return nil, err
	}
	_ = s.cache.CacheToken(token, tokenCacheTTL)
	return token, nil
}

// IncrementTokenUsage 自增计数后使缓存失效，避免限额判断读到旧计数。
func (s *Store) IncrementTokenUsage(id string, at time.Time) error {
	if err := s.Store.IncrementTokenUsage(id, at); err != nil {
		return err
	}
	s.invalidateTokenByID(id)
	return nil
}

// ResetTokenUsage 清零计数后使缓存失效。
func (s *Store) ResetTokenUsage(id string) error {
	if err := s.Store.ResetTokenUsage(id); err != nil {
		return err
	}
	s.invalidateTokenByID(id)
	return nil
}

// SetTokenActive 切换状态后使缓存失效。
func (s *Store) SetTokenActive(id string, active bool) error {
	if err := s.Store.SetTokenActive(id, active); err != nil {
		return err
	}
	s.invalidateTokenByID(id)
	return nil
}

// DeleteToken 删除令牌并清缓存。
func (s *Store) DeleteToken(id string) error {
	token, err := s.Store.GetToken(id)
	if err != nil {
		return err
	}
	if err := s.Store.DeleteToken(id); err != nil {
		return err
	}
	_ = s.cache.InvalidateToken(token.Token)
	return nil
}

// Close 关闭数据库与 Redis 连接。
func (s *Store) Close() error {
	cacheErr := s.cache.Close()
	if err := s.Store.Close(); err != nil {
		return err
	}
	return cacheErr
}

// Health 检查数据库与 Redis 健康状态。
func (s *Store) Health() error {
	if err := s.Store.Health(); err != nil {
		return err
	}
	return s.cache.Health()
}

func (s *Store) invalidateTokenByID(id string) {
	if token, err := s.Store.GetToken(id); err == nil {
		_ = s.cache.InvalidateToken(token.Token)
	}
}
