package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailpool/backend/internal/domain"
	"mailpool/backend/internal/storage/memory"
)

// fakeResolver 按链接返回预置的余额或错误
type fakeResolver struct {
	balances map[string]int
	errs     map[string]error
}

func (f *fakeResolver) ResolveCustomer(_ context.Context, link string) (string, string, error) {
	if err, ok := f.errs[link]; ok {
		return "", "", err
	}
	return link, "tok", nil
}

func (f *fakeResolver) FetchBalance(_ context.Context, customerID, _ string) (int, error) {
	return f.balances[customerID], nil
}

func strPtr(s string) *string { return &s }

func seedRecord(t *testing.T, store *memory.Store, email string, link *string) *domain.TestMailboxRecord {
	t.Helper()
	record := &domain.TestMailboxRecord{
		ID:               email,
		Email:            email,
		VerificationCode: "000000",
		UsageLedgerLink:  link,
		CreatedAt:        time.Now().UTC(),
	}
	require.NoError(t, store.SavePoolRecord(record))
	return record
}

func TestSynchronizerRefreshBalance(t *testing.T) {
	t.Run("同步成功写入余额", func(t *testing.T) {
		store := memory.NewStore()
		record := seedRecord(t, store, "a@test.mail", strPtr("https://l.example.com?token=t1"))

		resolver := &fakeResolver{balances: map[string]int{"https://l.example.com?token=t1": 125}}
		sync := NewSynchronizer(resolver, store, zap.NewNop())

		balance, err := sync.RefreshBalance(context.Background(), record)
		require.NoError(t, err)
		assert.Equal(t, 125, balance)

		stored, err := store.GetPoolRecordByEmail("a@test.mail")
		require.NoError(t, err)
		require.NotNil(t, stored.CreditBalance)
		assert.Equal(t, 125, *stored.CreditBalance)
		assert.NotNil(t, stored.CreditBalanceAt)
	})

	t.Run("缺少账本链接", func(t *testing.T) {
		store := memory.NewStore()
		record := seedRecord(t, store, "b@test.mail", nil)

		sync := NewSynchronizer(&fakeResolver{}, store, zap.NewNop())
		_, err := sync.RefreshBalance(context.Background(), record)
		assert.ErrorIs(t, err, ErrInvalidLedgerLink)
	})

	t.Run("链接无效时不改动已有余额", func(t *testing.T) {
		store := memory.NewStore()
		record := seedRecord(t, store, "c@test.mail", strPtr("https://l.example.com?token=bad"))

		oldBalance := 80
		oldAt := time.Now().UTC().Add(-time.Hour)
		require.NoError(t, store.UpdatePoolCreditBalance("c@test.mail", oldBalance, oldAt))

		resolver := &fakeResolver{errs: map[string]error{"https://l.example.com?token=bad": ErrInvalidLedgerLink}}
		sync := NewSynchronizer(resolver, store, zap.NewNop())

		_, err := sync.RefreshBalance(context.Background(), record)
		assert.ErrorIs(t, err, ErrInvalidLedgerLink)

		stored, err := store.GetPoolRecordByEmail("c@test.mail")
		require.NoError(t, err)
		require.NotNil(t, stored.CreditBalance)
		assert.Equal(t, oldBalance, *stored.CreditBalance)
		assert.True(t, stored.CreditBalanceAt.Equal(oldAt))
	})
}

func TestSynchronizerSweepAll(t *testing.T) {
	t.Run("单条失败不影响其余记录", func(t *testing.T) {
		store := memory.NewStore()
		seedRecord(t, store, "ok1@test.mail", strPtr("https://l.example.com?token=ok1"))
		seedRecord(t, store, "bad@test.mail", strPtr("https://l.example.com?token=bad"))
		seedRecord(t, store, "ok2@test.mail", strPtr("https://l.example.com?token=ok2"))
		seedRecord(t, store, "nolink@test.mail", nil)

		resolver := &fakeResolver{
			balances: map[string]int{
				"https://l.example.com?token=ok1": 10,
				"https://l.example.com?token=ok2": 20,
			},
			errs: map[string]error{"https://l.example.com?token=bad": ErrLedgerUnavailable},
		}
		sync := NewSynchronizer(resolver, store, zap.NewNop())

		synced, failed := sync.SweepAll(context.Background())
		assert.Equal(t, 2, synced)
		assert.Equal(t, 1, failed)

		stored, err := store.GetPoolRecordByEmail("ok2@test.mail")
		require.NoError(t, err)
		require.NotNil(t, stored.CreditBalance)
		assert.Equal(t, 20, *stored.CreditBalance)

		// 无链接的记录不进入扫描范围
		stored, err = store.GetPoolRecordByEmail("nolink@test.mail")
		require.NoError(t, err)
		assert.Nil(t, stored.CreditBalance)
	})

	t.Run("上下文取消时提前结束", func(t *testing.T) {
		store := memory.NewStore()
		seedRecord(t, store, "x@test.mail", strPtr("https://l.example.com?token=x"))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		sync := NewSynchronizer(&fakeResolver{}, store, zap.NewNop())
		synced, failed := sync.SweepAll(ctx)
		assert.Equal(t, 0, synced)
		assert.Equal(t, 0, failed)
	})
}
