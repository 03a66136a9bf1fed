package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("缺少推导密钥时拒绝启动", func(t *testing.T) {
		viper.Reset()
		t.Setenv("MAILPOOL_VERIFY_SECRET", "")

		cfg, err := Load()
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "verify secret")
	})

	t.Run("密钥过短时拒绝启动", func(t *testing.T) {
		viper.Reset()
		t.Setenv("MAILPOOL_VERIFY_SECRET", "short")

		cfg, err := Load()
		assert.Error(t, err)
		assert.Nil(t, cfg)
	})

	t.Run("合法配置加载默认值", func(t *testing.T) {
		viper.Reset()
		t.Setenv("MAILPOOL_VERIFY_SECRET", "a-long-enough-secret")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, []string{"temp.mail"}, cfg.Mailbox.AllowedDomains)
		assert.Equal(t, 50, cfg.Mailbox.MessageLimit)
		assert.Equal(t, "legacy", cfg.Verify.Mode)
		assert.False(t, cfg.Pool.ClaimStrict)
		assert.Equal(t, "", cfg.Database.Type)
	})

	t.Run("环境变量覆盖默认值", func(t *testing.T) {
		viper.Reset()
		t.Setenv("MAILPOOL_VERIFY_SECRET", "a-long-enough-secret")
		t.Setenv("MAILPOOL_VERIFY_MODE", "hmac")
		t.Setenv("MAILPOOL_MAILBOX_ALLOWED_DOMAINS", "a.mail, b.mail")
		t.Setenv("MAILPOOL_LEDGER_BASE_URL", "https://ledger.example.com/")
		t.Setenv("MAILPOOL_POOL_CLAIM_STRICT", "true")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "hmac", cfg.Verify.Mode)
		assert.Equal(t, []string{"a.mail", "b.mail"}, cfg.Mailbox.AllowedDomains)
		assert.Equal(t, "https://ledger.example.com", cfg.Ledger.BaseURL)
		assert.True(t, cfg.Pool.ClaimStrict)
	})

	t.Run("非法推导模式拒绝启动", func(t *testing.T) {
		viper.Reset()
		t.Setenv("MAILPOOL_VERIFY_SECRET", "a-long-enough-secret")
		t.Setenv("MAILPOOL_VERIFY_MODE", "rot13")

		cfg, err := Load()
		assert.Error(t, err)
		assert.Nil(t, cfg)
	})
}
