package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
)

var (
	// ErrInvalidLedgerLink 账本链接缺失或其内嵌令牌被账本服务拒绝
	ErrInvalidLedgerLink = errors.New("invalid usage ledger link")
	// ErrLedgerUnavailable 账本服务不可达或返回服务端错误
	ErrLedgerUnavailable = errors.New("ledger service unavailable")
)

// 账本服务要求浏览器风格的请求头，否则直接拒绝
const (
	browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	acceptHeader     = "application/json, text/plain, */*"
)

// Resolver 抽象账本服务的两跳调用能力。
//
// 同步注册路径与批量扫描共用同一个实现，因而共享一套
// 超时策略和测试替身。
type Resolver interface {
	// ResolveCustomer 将账本链接内嵌的令牌兑换为客户标识
	ResolveCustomer(ctx context.Context, link string) (customerID, token string, err error)
	// FetchBalance 查询指定客户在固定计价单元下的余额（四舍五入为整数）
	FetchBalance(ctx context.Context, customerID, token string) (int, error)
}

// Client 账本服务 HTTP 客户端。
//
// 两次调用均不做内部重试：失败立即上抛，批量扫描时由调用方
// 隔离单条记录的失败，保证单条延迟有界。
type Client struct {
	httpClient    *http.Client
	baseURL       string
	pricingUnitID string
}

// NewClient 创建账本服务客户端。timeout 约束单次 HTTP 调用。
func NewClient(baseURL, pricingUnitID string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient:    httpClient,
		baseURL:       baseURL,
		pricingUnitID: pricingUnitID,
	}
}

// customerResponse 对应 GET /customer_from_link 的响应体
type customerResponse struct {
	Customer struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"customer"`
}

// summaryResponse 对应 GET /customers/{id}/ledger_summary 的响应体；
// credits_balance 可能是字符串也可能是数字
type summaryResponse struct {
	CreditsBalance json.Number `json:"credits_balance"`
}

// ResolveCustomer 第一跳：从链接提取令牌并兑换客户标识。
func (c *Client) ResolveCustomer(ctx context.Context, link string) (string, string, error) {
	token, err := extractToken(link)
	if err != nil {
		return "", "", err
	}

	endpoint := fmt.Sprintf("%s/customer_from_link?token=%s", c.baseURL, url.QueryEscape(token))
	var body customerResponse
	if err := c.getJSON(ctx, endpoint, &body); err != nil {
		return "", "", err
	}
	if body.Customer.ID == "" {
		return "", "", ErrInvalidLedgerLink
	}
	return body.Customer.ID, token, nil
}

// FetchBalance 第二跳：查询余额并四舍五入为整数。
func (c *Client) FetchBalance(ctx context.Context, customerID, token string) (int, error) {
	endpoint := fmt.Sprintf("%s/customers/%s/ledger_summary?pricing_unit_id=%s&token=%s",
		c.baseURL, url.PathEscape(customerID), url.QueryEscape(c.pricingUnitID), url.QueryEscape(token))

	var body summaryResponse
	if err := c.getJSON(ctx, endpoint, &body); err != nil {
		return 0, err
	}

	balance, err := body.CreditsBalance.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: malformed credits_balance %q", ErrLedgerUnavailable, body.CreditsBalance)
	}
	return int(math.Round(balance)), nil
}

// getJSON 发起 GET 请求并解析 JSON 响应。
// 4xx 说明令牌被拒绝（链接无效），其余非 2xx 视为服务不可用。
func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return ErrInvalidLedgerLink
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: unexpected status %d", ErrLedgerUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return nil
}

// extractToken 从账本链接中提取内嵌令牌。
func extractToken(link string) (string, error) {
	if link == "" {
		return "", ErrInvalidLedgerLink
	}
	parsed, err := url.Parse(link)
	if err != nil {
		return "", ErrInvalidLedgerLink
	}
	token := parsed.Query().Get("token")
	if token == "" {
		return "", ErrInvalidLedgerLink
	}
	return token, nil
}
