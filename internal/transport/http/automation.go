package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailpool/backend/internal/middleware"
	"mailpool/backend/internal/monitoring"
	"mailpool/backend/internal/service"
)

// Action 自动化网关动作。封闭枚举，未知动作一律拒绝。
type Action string

const (
	ActionGetAvailableMailboxes Action = "get-available-mailboxes"
	ActionGetVerificationCodes  Action = "get-verification-codes"
	ActionMarkRegistered        Action = "mark-registered"
	ActionGetAllMailboxes       Action = "get-all-mailboxes"
	ActionUpdateCreditBalance   Action = "update-credit-balance"
)

// ParseAction 解析动作名，未知动作返回 false。
func ParseAction(raw string) (Action, bool) {
	switch Action(raw) {
	case ActionGetAvailableMailboxes,
		ActionGetVerificationCodes,
		ActionMarkRegistered,
		ActionGetAllMailboxes,
		ActionUpdateCreditBalance:
		return Action(raw), true
	}
	return "", false
}

// SchedulerAllowed 判断动作是否可由调度器密钥放行。
// 调度器只触发批量导出和余额扫描，单邮箱操作必须持令牌。
func (a Action) SchedulerAllowed() bool {
	return a == ActionGetAllMailboxes || a == ActionUpdateCreditBalance
}

// AutomationHandler 自动化网关处理器
type AutomationHandler struct {
	pool    *service.PoolService
	tokens  *service.TokenService
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewAutomationHandler 创建自动化网关处理器
func NewAutomationHandler(pool *service.PoolService, tokens *service.TokenService, metrics *monitoring.Metrics, log *zap.Logger) *AutomationHandler {
	return &AutomationHandler{
		pool:    pool,
		tokens:  tokens,
		metrics: metrics,
		log:     log,
	}
}

// automationRequest 网关请求参数
type automationRequest struct {
	Action          string  `form:"action" json:"action"`
	Email           string  `form:"email" json:"email"`
	Limit           int     `form:"limit" json:"limit"`
	UsageLedgerLink *string `form:"usageLedgerLink" json:"usageLedgerLink"`
}

// Handle 自动化网关统一入口。
// POST /v1/automation {"action": "...", ...}
//
// 令牌额度只在动作成功后消耗，失败的请求不计入用量。
func (h *AutomationHandler) Handle(c *gin.Context) {
	var req automationRequest
	if err := c.ShouldBind(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	action, ok := ParseAction(req.Action)
	if !ok {
		h.countAction(Action(req.Action), "unknown")
		BadRequest(c, MsgUnknownAction)
		return
	}

	if middleware.SchedulerAuthorized(c) && !action.SchedulerAllowed() {
		h.countAction(action, "forbidden")
		Forbidden(c, MsgTokenOnlyAction)
		return
	}

	data, err := h.execute(c, action, req)
	if err != nil {
		h.countAction(action, "error")
		RespondError(c, h.log, err)
		return
	}

	h.consumeToken(c, action)
	h.countAction(action, "success")
	Success(c, data)
}

// execute 按动作分发。switch 覆盖全部合法动作，不设兜底分支。
func (h *AutomationHandler) execute(c *gin.Context, action Action, req automationRequest) (interface{}, error) {
	switch action {
	case ActionGetAvailableMailboxes:
		limit := req.Limit
		if limit <= 0 {
			limit = 10
		}
		return h.pool.ListAvailable(limit)

	case ActionGetVerificationCodes:
		if req.Email == "" {
			return nil, errMissingEmail
		}
		return h.pool.MessagesFor(req.Email, req.Limit)

	case ActionMarkRegistered:
		if req.Email == "" {
			return nil, errMissingEmail
		}
		result, err := h.pool.MarkRegistered(c.Request.Context(), req.Email, req.UsageLedgerLink)
		if err == nil && h.metrics != nil {
			h.metrics.PoolRecordsRegistered.Inc()
		}
		return result, err

	case ActionGetAllMailboxes:
		return h.pool.ListAll()

	case ActionUpdateCreditBalance:
		if req.Email == "" {
			return nil, errMissingEmail
		}
		return h.pool.UpdateCreditBalance(c.Request.Context(), req.Email)
	}
	// ParseAction 已兜住未知动作，这里不可达
	return nil, errMissingEmail
}

// consumeToken 业务成功后登记一次令牌消耗。调度器放行时无令牌可扣。
func (h *AutomationHandler) consumeToken(c *gin.Context, action Action) {
	token := middleware.TokenFromContext(c)
	if token == nil {
		return
	}

	usage := service.UsageContext{
		Action:    string(action),
		SourceIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
	if err := h.tokens.Consume(token.ID, usage); err != nil {
		h.log.Warn("令牌消耗登记失败",
			zap.String("token_id", token.ID),
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

func (h *AutomationHandler) countAction(action Action, outcome string) {
	if h.metrics == nil {
		return
	}
	h.metrics.GatewayActionsTotal.WithLabelValues(string(action), outcome).Inc()
}
