package ledger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientResolveCustomer(t *testing.T) {
	t.Run("令牌兑换客户标识", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/customer_from_link", r.URL.Path)
			assert.Equal(t, "tok-123", r.URL.Query().Get("token"))
			assert.NotEmpty(t, r.Header.Get("User-Agent"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"customer":{"id":"cus_42","email":"x@y.z"}}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "pu-1", server.Client())
		customerID, token, err := client.ResolveCustomer(context.Background(), "https://ledger.example.com/embed?token=tok-123")
		require.NoError(t, err)
		assert.Equal(t, "cus_42", customerID)
		assert.Equal(t, "tok-123", token)
	})

	t.Run("链接缺少令牌", func(t *testing.T) {
		client := NewClient("http://unused", "pu-1", nil)
		_, _, err := client.ResolveCustomer(context.Background(), "https://ledger.example.com/embed")
		assert.ErrorIs(t, err, ErrInvalidLedgerLink)
	})

	t.Run("空链接", func(t *testing.T) {
		client := NewClient("http://unused", "pu-1", nil)
		_, _, err := client.ResolveCustomer(context.Background(), "")
		assert.ErrorIs(t, err, ErrInvalidLedgerLink)
	})

	t.Run("令牌被拒绝", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		client := NewClient(server.URL, "pu-1", server.Client())
		_, _, err := client.ResolveCustomer(context.Background(), "https://ledger.example.com/embed?token=bad")
		assert.ErrorIs(t, err, ErrInvalidLedgerLink)
	})

	t.Run("服务端错误", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := NewClient(server.URL, "pu-1", server.Client())
		_, _, err := client.ResolveCustomer(context.Background(), "https://ledger.example.com/embed?token=tok")
		assert.ErrorIs(t, err, ErrLedgerUnavailable)
	})
}

func TestClientFetchBalance(t *testing.T) {
	t.Run("余额为数字", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/customers/cus_42/ledger_summary", r.URL.Path)
			assert.Equal(t, "pu-1", r.URL.Query().Get("pricing_unit_id"))
			assert.Equal(t, "tok", r.URL.Query().Get("token"))
			w.Write([]byte(`{"credits_balance": 125}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "pu-1", server.Client())
		balance, err := client.FetchBalance(context.Background(), "cus_42", "tok")
		require.NoError(t, err)
		assert.Equal(t, 125, balance)
	})

	t.Run("余额为字符串", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"credits_balance": "118.00"}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "pu-1", server.Client())
		balance, err := client.FetchBalance(context.Background(), "cus_42", "tok")
		require.NoError(t, err)
		assert.Equal(t, 118, balance)
	})

	t.Run("小数四舍五入", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"credits_balance": "99.5"}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "pu-1", server.Client())
		balance, err := client.FetchBalance(context.Background(), "cus_42", "tok")
		require.NoError(t, err)
		assert.Equal(t, 100, balance)
	})

	t.Run("响应体格式非法", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"credits_balance": "not-a-number"}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "pu-1", server.Client())
		_, err := client.FetchBalance(context.Background(), "cus_42", "tok")
		assert.ErrorIs(t, err, ErrLedgerUnavailable)
	})
}
