package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailpool/backend/internal/domain"
	"mailpool/backend/internal/storage"
)

func newRecord(email string, createdAt time.Time) *domain.TestMailboxRecord {
	return &domain.TestMailboxRecord{
		ID:               email,
		Email:            email,
		VerificationCode: "123456",
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
}

func TestPoolLifecycle(t *testing.T) {
	t.Run("新记录可领取", func(t *testing.T) {
		store := NewStore()
		now := time.Now().UTC()
		require.NoError(t, store.SavePoolRecord(newRecord("a@test.mail", now)))

		available, err := store.ListAvailablePoolRecords(0)
		require.NoError(t, err)
		require.Len(t, available, 1)
		assert.Equal(t, domain.RegistrationUnregistered, available[0].RegistrationStatus())
		assert.Equal(t, domain.SaleUnsold, available[0].SaleStatus())
	})

	t.Run("标记注册写入约定字段", func(t *testing.T) {
		store := NewStore()
		now := time.Now().UTC()
		require.NoError(t, store.SavePoolRecord(newRecord("b@test.mail", now)))

		link := "https://ledger.example.com?token=t"
		record, err := store.MarkPoolRecordRegistered("b@test.mail", storage.PoolRegistration{
			LedgerLink: &link,
			Count:      "125",
			At:         now,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.RegistrationRegistered, record.RegistrationStatus())
		assert.Equal(t, domain.SaleUnsold, record.SaleStatus())
		assert.True(t, record.IsAutoRegistered)
		assert.Equal(t, "125", record.Count)
		require.NotNil(t, record.UsageLedgerLink)
		assert.Equal(t, link, *record.UsageLedgerLink)

		// 注册后不再可领取
		available, err := store.ListAvailablePoolRecords(0)
		require.NoError(t, err)
		assert.Empty(t, available)
	})

	t.Run("重复标记不报错且不覆盖链接", func(t *testing.T) {
		store := NewStore()
		now := time.Now().UTC()
		require.NoError(t, store.SavePoolRecord(newRecord("c@test.mail", now)))

		link := "https://ledger.example.com?token=t"
		_, err := store.MarkPoolRecordRegistered("c@test.mail", storage.PoolRegistration{
			LedgerLink: &link, Count: "125", At: now,
		})
		require.NoError(t, err)

		record, err := store.MarkPoolRecordRegistered("c@test.mail", storage.PoolRegistration{
			Count: "125", At: now.Add(time.Minute),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.RegistrationRegistered, record.RegistrationStatus())
		require.NotNil(t, record.UsageLedgerLink)
		assert.Equal(t, link, *record.UsageLedgerLink)
	})

	t.Run("不存在的记录返回哨兵错误", func(t *testing.T) {
		store := NewStore()
		_, err := store.MarkPoolRecordRegistered("ghost@test.mail", storage.PoolRegistration{})
		assert.ErrorIs(t, err, storage.ErrPoolRecordNotFound)

		err = store.UpdatePoolCreditBalance("ghost@test.mail", 1, time.Now())
		assert.ErrorIs(t, err, storage.ErrPoolRecordNotFound)
	})

	t.Run("余额刷新不触碰生命周期状态", func(t *testing.T) {
		store := NewStore()
		now := time.Now().UTC()
		require.NoError(t, store.SavePoolRecord(newRecord("d@test.mail", now)))

		require.NoError(t, store.UpdatePoolCreditBalance("d@test.mail", 77, now))
		record, err := store.GetPoolRecordByEmail("d@test.mail")
		require.NoError(t, err)
		require.NotNil(t, record.CreditBalance)
		assert.Equal(t, 77, *record.CreditBalance)
		assert.Equal(t, domain.RegistrationUnregistered, record.RegistrationStatus())
	})

	t.Run("列表按创建时间稳定排序", func(t *testing.T) {
		store := NewStore()
		base := time.Now().UTC()
		require.NoError(t, store.SavePoolRecord(newRecord("late@test.mail", base.Add(time.Hour))))
		require.NoError(t, store.SavePoolRecord(newRecord("early@test.mail", base)))

		records, err := store.ListAllPoolRecords()
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "early@test.mail", records[0].Email)
	})
}

func TestClaimAvailablePoolRecords(t *testing.T) {
	t.Run("领取后在TTL内不重复派发", func(t *testing.T) {
		store := NewStore()
		now := time.Now().UTC()
		require.NoError(t, store.SavePoolRecord(newRecord("x@test.mail", now)))

		claimed, err := store.ClaimAvailablePoolRecords(1, now, 10*time.Minute)
		require.NoError(t, err)
		require.Len(t, claimed, 1)

		again, err := store.ClaimAvailablePoolRecords(1, now.Add(time.Minute), 10*time.Minute)
		require.NoError(t, err)
		assert.Empty(t, again)
	})

	t.Run("超过TTL的领取记录重新可用", func(t *testing.T) {
		store := NewStore()
		now := time.Now().UTC()
		require.NoError(t, store.SavePoolRecord(newRecord("y@test.mail", now)))

		_, err := store.ClaimAvailablePoolRecords(1, now, 10*time.Minute)
		require.NoError(t, err)

		later, err := store.ClaimAvailablePoolRecords(1, now.Add(11*time.Minute), 10*time.Minute)
		require.NoError(t, err)
		assert.Len(t, later, 1)
	})
}

func TestTokenRepository(t *testing.T) {
	t.Run("自增计数并更新最后使用时间", func(t *testing.T) {
		store := NewStore()
		token := &domain.APIToken{
			ID:        "tok-1",
			Token:     "secret-1",
			Name:      "bot",
			IsActive:  true,
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, store.SaveToken(token))

		now := time.Now().UTC()
		require.NoError(t, store.IncrementTokenUsage("tok-1", now))
		require.NoError(t, store.IncrementTokenUsage("tok-1", now.Add(time.Second)))

		got, err := store.GetToken("tok-1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.UsageCount)
		require.NotNil(t, got.LastUsedAt)
		assert.True(t, got.LastUsedAt.After(now))
	})

	t.Run("删除令牌连带审计记录", func(t *testing.T) {
		store := NewStore()
		token := &domain.APIToken{ID: "tok-2", Token: "secret-2", IsActive: true, CreatedAt: time.Now().UTC()}
		require.NoError(t, store.SaveToken(token))
		require.NoError(t, store.SaveTokenUsage(&domain.TokenUsage{
			ID: "u-1", TokenID: "tok-2", Action: "mark-registered", CreatedAt: time.Now().UTC(),
		}))

		require.NoError(t, store.DeleteToken("tok-2"))
		_, err := store.GetTokenBySecret("secret-2")
		assert.ErrorIs(t, err, storage.ErrTokenNotFound)

		usages, err := store.ListTokenUsages("tok-2", 10)
		require.NoError(t, err)
		assert.Empty(t, usages)
	})
}
