package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailpool/backend/internal/domain"
	"mailpool/backend/internal/monitoring"
	"mailpool/backend/internal/service"
)

// VerifyHandler 邮箱访问验证处理器
type VerifyHandler struct {
	verification *service.VerificationService
	metrics      *monitoring.Metrics
	log          *zap.Logger
}

// NewVerifyHandler 创建访问验证处理器
func NewVerifyHandler(verification *service.VerificationService, metrics *monitoring.Metrics, log *zap.Logger) *VerifyHandler {
	return &VerifyHandler{
		verification: verification,
		metrics:      metrics,
		log:          log,
	}
}

// verifyRequest 访问验证请求参数，支持查询串和 JSON 两种形式
type verifyRequest struct {
	Email string `form:"email" json:"email"`
	Code  string `form:"code" json:"code"`
	Limit int    `form:"limit" json:"limit"`
}

// Verify 校验邮箱地址与校验码，通过后返回邮件列表。
// GET /v1/verify?email=...&code=...
// POST /v1/verify {"email": "...", "code": "..."}
func (h *VerifyHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if c.Request.Method == "GET" {
		if err := c.ShouldBindQuery(&req); err != nil {
			BadRequest(c, MsgInvalidRequest)
			return
		}
	} else {
		if err := c.ShouldBind(&req); err != nil {
			BadRequest(c, MsgInvalidRequest)
			return
		}
	}

	result, err := h.verification.Verify(req.Email, req.Code, req.Limit)
	if err != nil {
		h.countAttempt(err)
		RespondError(c, h.log, err)
		return
	}

	h.countAttempt(nil)
	Success(c, result)
}

func (h *VerifyHandler) countAttempt(err error) {
	if h.metrics == nil {
		return
	}
	switch {
	case err == nil:
		h.metrics.VerifyAttemptsTotal.WithLabelValues("success").Inc()
	case errors.Is(err, service.ErrCodeMismatch):
		h.metrics.VerifyAttemptsTotal.WithLabelValues("code_mismatch").Inc()
	case errors.Is(err, service.ErrMailboxNotFound):
		h.metrics.VerifyAttemptsTotal.WithLabelValues("not_found").Inc()
	case errors.Is(err, domain.ErrInvalidEmail):
		h.metrics.VerifyAttemptsTotal.WithLabelValues("invalid_format").Inc()
	default:
		h.metrics.VerifyAttemptsTotal.WithLabelValues("error").Inc()
	}
}
