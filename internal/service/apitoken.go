package service

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailpool/backend/internal/domain"
	"mailpool/backend/internal/storage"
)

var (
	// ErrInvalidToken 令牌不存在、已停用、超限或已过期。
	// 对外统一一种错误，不区分具体原因。
	ErrInvalidToken = errors.New("invalid or unusable api token")
	// ErrTokenNotFound 按标识查找令牌失败（管理接口用）
	ErrTokenNotFound = errors.New("api token not found")
)

// UsageContext 一次令牌消耗的审计上下文
type UsageContext struct {
	Action    string
	SourceIP  string
	UserAgent string
}

// TokenService 自动化令牌的签发、校验与计量服务。
//
// 校验与消耗分离：网关先 Validate 放行请求，业务成功后才
// Consume。失败的请求不计入用量。
type TokenService struct {
	store storage.Store
	log   *zap.Logger
}

// NewTokenService 创建令牌服务
func NewTokenService(store storage.Store, log *zap.Logger) *TokenService {
	return &TokenService{store: store, log: log}
}

// Validate 校验令牌是否可用。
// 可用定义：启用中，且（无限额或计数未达限额），且（无过期时间或未过期）。
func (s *TokenService) Validate(secret string) (*domain.APIToken, error) {
	if secret == "" {
		return nil, ErrInvalidToken
	}

	token, err := s.store.GetTokenBySecret(secret)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !token.Usable(time.Now().UTC()) {
		return nil, ErrInvalidToken
	}
	return token, nil
}

// Consume 在业务成功后登记一次令牌消耗：自增计数并写审计记录。
// 审计写入失败只记日志，不影响已完成的业务结果。
func (s *TokenService) Consume(tokenID string, usage UsageContext) error {
	now := time.Now().UTC()
	if err := s.store.IncrementTokenUsage(tokenID, now); err != nil {
		return err
	}

	record := &domain.TokenUsage{
		ID:        uuid.New().String(),
		TokenID:   tokenID,
		Action:    usage.Action,
		SourceIP:  usage.SourceIP,
		UserAgent: usage.UserAgent,
		CreatedAt: now,
	}
	if err := s.store.SaveTokenUsage(record); err != nil {
		s.log.Warn("令牌审计记录写入失败",
			zap.String("token_id", tokenID),
			zap.String("action", usage.Action),
			zap.Error(err))
	}
	return nil
}

// Create 签发新令牌。完整密钥只在创建响应中出现一次，
// 之后的列表接口一律返回掩码形式。
func (s *TokenService) Create(name string, usageLimit *int64, expiresAt *time.Time) (*domain.APIToken, error) {
	secret, err := generateTokenSecret()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token secret: %w", err)
	}

	token := &domain.APIToken{
		ID:         uuid.New().String(),
		Token:      secret,
		Name:       name,
		UsageLimit: usageLimit,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
		ExpiresAt:  expiresAt,
	}
	if err := s.store.SaveToken(token); err != nil {
		return nil, err
	}

	s.log.Info("签发自动化令牌",
		zap.String("token_id", token.ID),
		zap.String("name", name))
	return token, nil
}

// Get 按标识返回令牌。
func (s *TokenService) Get(id string) (*domain.APIToken, error) {
	token, err := s.store.GetToken(id)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return token, nil
}

// List 返回全部令牌。调用方负责掩码处理后再对外输出。
func (s *TokenService) List() ([]*domain.APIToken, error) {
	return s.store.ListTokens()
}

// SetActive 启用或停用令牌。
func (s *TokenService) SetActive(id string, active bool) error {
	if err := s.store.SetTokenActive(id, active); err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return ErrTokenNotFound
		}
		return err
	}
	return nil
}

// ResetUsage 将令牌使用计数清零。
func (s *TokenService) ResetUsage(id string) error {
	if err := s.store.ResetTokenUsage(id); err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return ErrTokenNotFound
		}
		return err
	}
	return nil
}

// Delete 删除令牌及其审计记录。
func (s *TokenService) Delete(id string) error {
	if err := s.store.DeleteToken(id); err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return ErrTokenNotFound
		}
		return err
	}
	return nil
}

// Usages 返回令牌最近的审计记录。
func (s *TokenService) Usages(tokenID string, limit int) ([]domain.TokenUsage, error) {
	return s.store.ListTokenUsages(tokenID, limit)
}

// generateTokenSecret 生成 64 位十六进制令牌密钥
func generateTokenSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
