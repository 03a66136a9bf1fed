package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailpool/backend/internal/domain"
	"mailpool/backend/internal/ledger"
	"mailpool/backend/internal/service"
)

// errMissingEmail 网关动作缺少邮箱地址参数
var errMissingEmail = errors.New("missing email parameter")

// 错误消息映射表（业务错误 -> 中文消息）。
// 校验码不匹配的消息绝不包含期望的校验码。
var errorMessages = map[error]string{
	// 访问验证错误
	domain.ErrInvalidEmail:     "邮箱地址格式无效",
	domain.ErrEmailTooLong:     "邮箱地址过长",
	domain.ErrLocalPartTooLong: "邮箱前缀过长",
	domain.ErrDomainTooLong:    "邮箱域名过长",
	service.ErrCodeMismatch:    "校验码不正确",
	service.ErrMailboxNotFound: "邮箱不存在",
	errMissingEmail:            MsgMissingEmail,

	// 测试邮箱池错误
	service.ErrPoolRecordNotFound: "测试邮箱记录不存在",

	// 账本同步错误
	ledger.ErrInvalidLedgerLink: "用量账本链接无效",
	ledger.ErrLedgerUnavailable: "账本服务暂时不可用",

	// 令牌错误
	service.ErrInvalidToken:  "令牌无效或已耗尽",
	service.ErrTokenNotFound: "令牌不存在",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	for sentinel, msg := range errorMessages {
		if errors.Is(err, sentinel) {
			return msg
		}
	}
	return err.Error()
}

// RespondError 按业务错误类型选择状态码并输出统一响应。
// 未映射的内部错误先完整记录日志，再以通用消息返回。
func RespondError(c *gin.Context, log *zap.Logger, err error) {
	msg := GetErrorMessage(err)
	switch {
	case errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrEmailTooLong),
		errors.Is(err, domain.ErrLocalPartTooLong),
		errors.Is(err, domain.ErrDomainTooLong),
		errors.Is(err, ledger.ErrInvalidLedgerLink),
		errors.Is(err, errMissingEmail):
		BadRequest(c, msg)
	case errors.Is(err, service.ErrCodeMismatch):
		Forbidden(c, msg)
	case errors.Is(err, service.ErrInvalidToken):
		Unauthorized(c, msg)
	case errors.Is(err, service.ErrMailboxNotFound),
		errors.Is(err, service.ErrPoolRecordNotFound),
		errors.Is(err, service.ErrTokenNotFound):
		NotFound(c, msg)
	case errors.Is(err, ledger.ErrLedgerUnavailable):
		Fail(c, http.StatusBadGateway, msg)
	default:
		if log != nil {
			log.Error("internal error",
				zap.Error(err),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("ip", c.ClientIP()),
			)
		}
		InternalError(c, MsgInternalError)
	}
}

// 通用错误消息
const (
	MsgInvalidRequest   = "请求参数格式错误"
	MsgInvalidJSON      = "JSON格式错误"
	MsgUnknownAction    = "不支持的动作"
	MsgMissingEmail     = "缺少邮箱地址参数"
	MsgSchedulerOnly    = "该动作仅限令牌调用"
	MsgTokenOnlyAction  = "调度器密钥仅限批量类动作"
	MsgAdminDisabled    = "管理接口未启用"
	MsgInternalError    = "服务器内部错误，请稍后重试"
	MsgTokenCreateName  = "令牌名称不能为空"
	MsgInvalidExpiresIn = "过期时间格式无效"
)
