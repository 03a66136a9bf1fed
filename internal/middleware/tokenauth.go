package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailpool/backend/internal/domain"
	"mailpool/backend/internal/monitoring"
	"mailpool/backend/internal/service"
)

// 上下文键
const (
	ContextKeyToken     = "apiToken"
	ContextKeySchedRole = "schedulerAuthorized"
)

// TokenAuth 自动化令牌认证中间件
type TokenAuth struct {
	tokens       *service.TokenService
	schedulerKey string
	metrics      *monitoring.Metrics
	log          *zap.Logger
}

// NewTokenAuth 创建自动化令牌认证中间件
func NewTokenAuth(tokens *service.TokenService, schedulerKey string, metrics *monitoring.Metrics, log *zap.Logger) *TokenAuth {
	return &TokenAuth{
		tokens:       tokens,
		schedulerKey: schedulerKey,
		metrics:      metrics,
		log:          log,
	}
}

// RequireToken 要求自动化令牌认证。
//
// 令牌从 Authorization: Bearer 或 X-API-Token 头提取。
// 调度器共享密钥（X-Scheduler-Key）只放行批量类动作，放行时
// 不消耗任何令牌额度，由处理器按动作自行判断。
func (ta *TokenAuth) RequireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ta.schedulerAuthorized(c) {
			c.Set(ContextKeySchedRole, true)
			c.Next()
			return
		}

		secret := extractTokenSecret(c)
		if secret == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "missing api token",
			})
			c.Abort()
			return
		}

		token, err := ta.tokens.Validate(secret)
		if err != nil {
			if ta.metrics != nil {
				ta.metrics.TokenRejectionsTotal.Inc()
			}
			ta.log.Warn("令牌校验未通过",
				zap.String("ip", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "invalid or exhausted api token",
			})
			c.Abort()
			return
		}

		c.Set(ContextKeyToken, token)
		c.Next()
	}
}

// TokenFromContext 从上下文取出已校验的令牌，调度器放行时返回 nil。
func TokenFromContext(c *gin.Context) *domain.APIToken {
	value, exists := c.Get(ContextKeyToken)
	if !exists {
		return nil
	}
	token, _ := value.(*domain.APIToken)
	return token
}

// SchedulerAuthorized 判断请求是否由调度器密钥放行。
func SchedulerAuthorized(c *gin.Context) bool {
	return c.GetBool(ContextKeySchedRole)
}

func (ta *TokenAuth) schedulerAuthorized(c *gin.Context) bool {
	if ta.schedulerKey == "" {
		return false
	}
	provided := c.GetHeader("X-Scheduler-Key")
	if provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(ta.schedulerKey)) == 1
}

func extractTokenSecret(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	return c.GetHeader("X-API-Token")
}
