package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailpool/backend/internal/domain"
	"mailpool/backend/internal/ledger"
	"mailpool/backend/internal/storage/memory"
)

// stubResolver 固定返回一个余额或错误
type stubResolver struct {
	balance int
	err     error
}

func (s *stubResolver) ResolveCustomer(_ context.Context, _ string) (string, string, error) {
	if s.err != nil {
		return "", "", s.err
	}
	return "cus_1", "tok", nil
}

func (s *stubResolver) FetchBalance(_ context.Context, _, _ string) (int, error) {
	return s.balance, nil
}

func newPoolService(store *memory.Store, resolver ledger.Resolver) *PoolService {
	var sync *ledger.Synchronizer
	if resolver != nil {
		sync = ledger.NewSynchronizer(resolver, store, zap.NewNop())
	}
	return NewPoolService(store, newTestDeriver(), sync, false, 10*time.Minute, zap.NewNop())
}

func TestPoolServiceCreateRecord(t *testing.T) {
	t.Run("生成记录时预计算校验码并建立邮箱", func(t *testing.T) {
		store := memory.NewStore()
		svc := newPoolService(store, nil)

		record, err := svc.CreateRecord("Tester01@Test.Mail", 0)
		require.NoError(t, err)
		assert.Equal(t, "tester01@test.mail", record.Email)
		assert.Equal(t, newTestDeriver().Derive("tester01"), record.VerificationCode)
		assert.True(t, record.Available())

		mailbox, err := store.GetMailboxByEmail("tester01@test.mail")
		require.NoError(t, err)
		assert.Equal(t, domain.OwnerTypePool, *mailbox.OwnerType)
	})

	t.Run("非法地址被拒绝", func(t *testing.T) {
		store := memory.NewStore()
		svc := newPoolService(store, nil)

		_, err := svc.CreateRecord("no-at-sign", 0)
		assert.ErrorIs(t, err, domain.ErrInvalidEmail)
	})
}

func TestPoolServiceListAvailable(t *testing.T) {
	t.Run("默认模式重复读取返回同一批", func(t *testing.T) {
		store := memory.NewStore()
		svc := newPoolService(store, nil)

		for _, email := range []string{"p1@test.mail", "p2@test.mail", "p3@test.mail"} {
			_, err := svc.CreateRecord(email, 0)
			require.NoError(t, err)
		}

		first, err := svc.ListAvailable(2)
		require.NoError(t, err)
		second, err := svc.ListAvailable(2)
		require.NoError(t, err)
		assert.Equal(t, first[0].Email, second[0].Email)
		assert.Len(t, first, 2)
	})

	t.Run("严格模式领取后暂不重复派发", func(t *testing.T) {
		store := memory.NewStore()
		svc := NewPoolService(store, newTestDeriver(), nil, true, 10*time.Minute, zap.NewNop())

		for _, email := range []string{"s1@test.mail", "s2@test.mail"} {
			_, err := svc.CreateRecord(email, 0)
			require.NoError(t, err)
		}

		first, err := svc.ListAvailable(1)
		require.NoError(t, err)
		require.Len(t, first, 1)

		second, err := svc.ListAvailable(1)
		require.NoError(t, err)
		require.Len(t, second, 1)
		assert.NotEqual(t, first[0].Email, second[0].Email)
	})
}

func TestPoolServiceMarkRegistered(t *testing.T) {
	link := "https://ledger.example.com/embed?token=tok-1"

	t.Run("标记注册写入约定字段并同步余额", func(t *testing.T) {
		store := memory.NewStore()
		svc := newPoolService(store, &stubResolver{balance: 118})

		_, err := svc.CreateRecord("reg@test.mail", 0)
		require.NoError(t, err)

		result, err := svc.MarkRegistered(context.Background(), "reg@test.mail", &link)
		require.NoError(t, err)
		assert.Equal(t, domain.RegistrationRegistered, result.Record.RegistrationStatus())
		assert.Equal(t, domain.SaleUnsold, result.Record.SaleStatus())
		assert.True(t, result.Record.IsAutoRegistered)
		assert.Equal(t, "125", result.Record.Count)
		assert.True(t, result.CreditBalanceUpdated)
		require.NotNil(t, result.Record.CreditBalance)
		assert.Equal(t, 118, *result.Record.CreditBalance)
	})

	t.Run("重复标记保持已注册且不报错", func(t *testing.T) {
		store := memory.NewStore()
		svc := newPoolService(store, nil)

		_, err := svc.CreateRecord("twice@test.mail", 0)
		require.NoError(t, err)

		_, err = svc.MarkRegistered(context.Background(), "twice@test.mail", nil)
		require.NoError(t, err)
		result, err := svc.MarkRegistered(context.Background(), "twice@test.mail", nil)
		require.NoError(t, err)
		assert.Equal(t, domain.RegistrationRegistered, result.Record.RegistrationStatus())
	})

	t.Run("余额同步失败不回滚注册标记", func(t *testing.T) {
		store := memory.NewStore()
		svc := newPoolService(store, &stubResolver{err: ledger.ErrLedgerUnavailable})

		_, err := svc.CreateRecord("lfail@test.mail", 0)
		require.NoError(t, err)

		result, err := svc.MarkRegistered(context.Background(), "lfail@test.mail", &link)
		require.NoError(t, err)
		assert.Equal(t, domain.RegistrationRegistered, result.Record.RegistrationStatus())
		assert.False(t, result.CreditBalanceUpdated)
		assert.NotEmpty(t, result.CreditBalanceError)
		assert.Nil(t, result.Record.CreditBalance)
	})

	t.Run("记录不存在", func(t *testing.T) {
		store := memory.NewStore()
		svc := newPoolService(store, nil)

		_, err := svc.MarkRegistered(context.Background(), "ghost@test.mail", nil)
		assert.ErrorIs(t, err, ErrPoolRecordNotFound)
	})
}

func TestPoolServiceMessagesFor(t *testing.T) {
	t.Run("逐封扫描六位验证码", func(t *testing.T) {
		store := memory.NewStore()
		svc := newPoolService(store, nil)

		_, err := svc.CreateRecord("otp@test.mail", 0)
		require.NoError(t, err)

		mailbox, err := store.GetMailboxByEmail("otp@test.mail")
		require.NoError(t, err)
		now := time.Now().UTC()
		seedMessage(t, store, mailbox.ID, "welcome", "Your verification code is 482913. Enjoy.", now.Add(-time.Minute))
		seedMessage(t, store, mailbox.ID, "news", "no digits here", now)

		messages, err := svc.MessagesFor("otp@test.mail", 0)
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Empty(t, messages[0].OTP)
		assert.Equal(t, "482913", messages[1].OTP)
	})

	t.Run("邮箱不存在", func(t *testing.T) {
		store := memory.NewStore()
		svc := newPoolService(store, nil)

		_, err := svc.MessagesFor("ghost@test.mail", 0)
		assert.ErrorIs(t, err, ErrMailboxNotFound)
	})
}

func TestPoolServiceUpdateCreditBalance(t *testing.T) {
	link := "https://ledger.example.com/embed?token=tok-2"

	t.Run("手动刷新余额", func(t *testing.T) {
		store := memory.NewStore()
		svc := newPoolService(store, &stubResolver{balance: 99})

		_, err := svc.CreateRecord("bal@test.mail", 0)
		require.NoError(t, err)
		_, err = svc.MarkRegistered(context.Background(), "bal@test.mail", &link)
		require.NoError(t, err)

		record, err := svc.UpdateCreditBalance(context.Background(), "bal@test.mail")
		require.NoError(t, err)
		require.NotNil(t, record.CreditBalance)
		assert.Equal(t, 99, *record.CreditBalance)
	})

	t.Run("链接无效时余额保持不变", func(t *testing.T) {
		store := memory.NewStore()
		svc := newPoolService(store, &stubResolver{err: ledger.ErrInvalidLedgerLink})

		_, err := svc.CreateRecord("keep@test.mail", 0)
		require.NoError(t, err)
		badLink := "https://ledger.example.com/embed?token=bad"
		_, err = svc.MarkRegistered(context.Background(), "keep@test.mail", &badLink)
		require.NoError(t, err)

		_, err = svc.UpdateCreditBalance(context.Background(), "keep@test.mail")
		assert.ErrorIs(t, err, ledger.ErrInvalidLedgerLink)

		record, err := store.GetPoolRecordByEmail("keep@test.mail")
		require.NoError(t, err)
		assert.Nil(t, record.CreditBalance)
	})
}
