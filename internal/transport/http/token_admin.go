package httptransport

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailpool/backend/internal/domain"
	"mailpool/backend/internal/service"
)

// TokenAdminHandler 令牌管理处理器（JWT 保护）
type TokenAdminHandler struct {
	tokens *service.TokenService
	log    *zap.Logger
}

// NewTokenAdminHandler 创建令牌管理处理器
func NewTokenAdminHandler(tokens *service.TokenService, log *zap.Logger) *TokenAdminHandler {
	return &TokenAdminHandler{tokens: tokens, log: log}
}

// tokenView 列表接口的令牌视图，密钥只展示掩码
type tokenView struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Token      string     `json:"token"`
	UsageCount int64      `json:"usageCount"`
	UsageLimit *int64     `json:"usageLimit,omitempty"`
	IsActive   bool       `json:"isActive"`
	CreatedAt  time.Time  `json:"createdAt"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}

func maskToken(token *domain.APIToken) tokenView {
	return tokenView{
		ID:         token.ID,
		Name:       token.Name,
		Token:      token.MaskedToken(),
		UsageCount: token.UsageCount,
		UsageLimit: token.UsageLimit,
		IsActive:   token.IsActive,
		CreatedAt:  token.CreatedAt,
		ExpiresAt:  token.ExpiresAt,
		LastUsedAt: token.LastUsedAt,
	}
}

// createTokenRequest 创建令牌请求
type createTokenRequest struct {
	Name       string `json:"name"`
	UsageLimit *int64 `json:"usageLimit"`
	ExpiresIn  string `json:"expiresIn"` // 如 "720h"，留空不过期
}

// CreateToken 签发新令牌。
// POST /v1/admin/tokens
// 完整密钥只在本次响应中出现一次。
func (h *TokenAdminHandler) CreateToken(c *gin.Context) {
	var req createTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidJSON)
		return
	}
	if req.Name == "" {
		BadRequest(c, MsgTokenCreateName)
		return
	}

	var expiresAt *time.Time
	if req.ExpiresIn != "" {
		duration, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || duration <= 0 {
			BadRequest(c, MsgInvalidExpiresIn)
			return
		}
		t := time.Now().UTC().Add(duration)
		expiresAt = &t
	}

	token, err := h.tokens.Create(req.Name, req.UsageLimit, expiresAt)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}

	view := maskToken(token)
	view.Token = token.Token // 创建响应回传完整密钥
	Created(c, view)
}

// ListTokens 列出全部令牌（掩码形式）。
// GET /v1/admin/tokens
func (h *TokenAdminHandler) ListTokens(c *gin.Context) {
	tokens, err := h.tokens.List()
	if err != nil {
		RespondError(c, h.log, err)
		return
	}

	views := make([]tokenView, 0, len(tokens))
	for _, token := range tokens {
		views = append(views, maskToken(token))
	}
	Success(c, views)
}

// ToggleToken 启用或停用令牌。
// PATCH /v1/admin/tokens/:id
func (h *TokenAdminHandler) ToggleToken(c *gin.Context) {
	var req struct {
		IsActive bool `json:"isActive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidJSON)
		return
	}

	if err := h.tokens.SetActive(c.Param("id"), req.IsActive); err != nil {
		RespondError(c, h.log, err)
		return
	}
	Success(c, gin.H{"message": "令牌状态已更新"})
}

// ResetTokenUsage 将令牌使用计数清零。
// POST /v1/admin/tokens/:id/reset
func (h *TokenAdminHandler) ResetTokenUsage(c *gin.Context) {
	if err := h.tokens.ResetUsage(c.Param("id")); err != nil {
		RespondError(c, h.log, err)
		return
	}
	Success(c, gin.H{"message": "使用计数已清零"})
}

// DeleteToken 删除令牌及其审计记录。
// DELETE /v1/admin/tokens/:id
func (h *TokenAdminHandler) DeleteToken(c *gin.Context) {
	if err := h.tokens.Delete(c.Param("id")); err != nil {
		RespondError(c, h.log, err)
		return
	}
	Success(c, gin.H{"message": "令牌已删除"})
}

// ListTokenUsages 查看令牌最近的审计记录。
// GET /v1/admin/tokens/:id/usages
func (h *TokenAdminHandler) ListTokenUsages(c *gin.Context) {
	if _, err := h.tokens.Get(c.Param("id")); err != nil {
		RespondError(c, h.log, err)
		return
	}

	usages, err := h.tokens.Usages(c.Param("id"), 100)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	Success(c, usages)
}
