package config_test

import (
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-emergency-notifier/notificationservice/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUpdateConfigWithEnvOverrides(t *testing.T) {
	logger := newTestLogger()

	baseConfig := func() *config.Config {
		return &config.Config{
			ProjectID:          "base-project",
			ListenAddr:         ":8080",
			SubscriptionID:     "base-sub",
			NumPipelineWorkers: 2,
			Vapid: config.VapidConfig{
				PublicKey:  "base-pub",
				PrivateKey: "base-priv",
			},
		}
	}

	t.Run("Success - All overrides applied", func(t *testing.T) {
		cfg := baseConfig()

		t.Setenv("PROJECT_ID", "env-project")
		t.Setenv("PORT", "9090")
		t.Setenv("SUBSCRIPTION_ID", "env-sub")
		t.Setenv("VAPID_PUBLIC_KEY", "env-pub")
		t.Setenv("VAPID_PRIVATE_KEY", "env-priv")
		t.Setenv("VAPID_SUB_EMAIL", "env@test.com")
		t.Setenv("DELIVERY_BATCH_SIZE", "250")
		t.Setenv("DELIVERY_BATCH_TIMEOUT", "3s")
		t.Setenv("BRAND_NAME", "City Rescue")
		t.Setenv("REDIS_ADDR", "redis:6379")

		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, "env-project", finalCfg.ProjectID)
		assert.Equal(t, ":9090", finalCfg.ListenAddr)
		assert.Equal(t, "env-sub", finalCfg.SubscriptionID)
		assert.Equal(t, "env-sub", finalCfg.PubsubConsumerConfig.SubscriptionID)

		assert.Equal(t, "env-pub", finalCfg.Vapid.PublicKey)
		assert.Equal(t, "env-priv", finalCfg.Vapid.PrivateKey)
		assert.Equal(t, "env@test.com", finalCfg.Vapid.SubscriberEmail)

		assert.Equal(t, 250, finalCfg.Delivery.BatchSize)
		assert.Equal(t, 3*time.Second, finalCfg.Delivery.BatchTimeout)
		assert.Equal(t, "City Rescue", finalCfg.BrandName)
		assert.True(t, finalCfg.Redis.Enabled)
		assert.Equal(t, "redis:6379", finalCfg.Redis.Addr)
	})

	t.Run("Success - Defaults filled", func(t *testing.T) {
		cfg := baseConfig()
		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, "base-project", finalCfg.ProjectID)
		assert.Equal(t, "base-pub", finalCfg.Vapid.PublicKey)
		assert.Equal(t, 500, finalCfg.Delivery.BatchSize)
		assert.Equal(t, 10*time.Second, finalCfg.Delivery.BatchTimeout)
		assert.Equal(t, 24*time.Hour, finalCfg.Redis.TTL)
		assert.Equal(t, "Emergency Response", finalCfg.BrandName)
		assert.Equal(t, "http://localhost:3000", finalCfg.IdentityServiceURL)
		assert.NotNil(t, finalCfg.PubsubConsumerConfig)
	})

	t.Run("Validation Failure - Missing ProjectID", func(t *testing.T) {
		cfg := &config.Config{SubscriptionID: "sub"}
		os.Unsetenv("PROJECT_ID")
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.Error(t, err)
	})

	t.Run("Validation Failure - Batch size above gateway limit", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Delivery.BatchSize = 501
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.ErrorContains(t, err, "exceeds the gateway limit")
	})

	t.Run("Validation Failure - APNs enabled without credentials", func(t *testing.T) {
		cfg := baseConfig()
		t.Setenv("APNS_KEY_FILE", "/secrets/apns.p8")
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.ErrorContains(t, err, "apns")
	})

	t.Run("Validation Failure - Bad batch timeout", func(t *testing.T) {
		cfg := baseConfig()
		t.Setenv("DELIVERY_BATCH_TIMEOUT", "soon")
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.Error(t, err)
	})
}
