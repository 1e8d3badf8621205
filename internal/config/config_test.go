package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Success loading from env", func(t *testing.T) {
		t.Setenv("DB_HOST", "localhost")
		t.Setenv("DB_USER", "testuser")
		t.Setenv("DB_PASSWORD", "testpass")
		t.Setenv("DB_NAME", "testdb")
		t.Setenv("DB_PORT", "5432")
		t.Setenv("APP_PORT", "9090")
		t.Setenv("APP_ENV", "test")
		t.Setenv("SECRET_KEY", "jwt-secret")
		t.Setenv("SITE_URL", "https://shop.example.com/")
		t.Setenv("PAYTABS_REGION", "are")
		t.Setenv("PAYTABS_PROFILE_ID", "12345")
		t.Setenv("PAYTABS_SERVER_KEY", "SKEY")
		t.Setenv("PAYTABS_COMPLETE_ORDER_STATUS", "fulfillment")
		t.Setenv("PAYTABS_FRAMED", "true")
		t.Setenv("PAYTABS_TIMEOUT", "3s")

		cfg := LoadConfig()

		assert.Equal(t, "localhost", cfg.DBHost)
		assert.Equal(t, "testuser", cfg.DBUser)
		assert.Equal(t, "testpass", cfg.DBPassword)
		assert.Equal(t, "testdb", cfg.DBName)
		assert.Equal(t, "5432", cfg.DBPort)
		assert.Equal(t, "9090", cfg.AppPort)
		assert.Equal(t, "test", cfg.AppEnv)
		assert.Equal(t, "jwt-secret", cfg.JWTSecret)
		assert.Equal(t, "https://shop.example.com", cfg.SiteURL)
		assert.Equal(t, "ARE", cfg.PayTabs.Region)
		assert.Equal(t, "12345", cfg.PayTabs.ProfileID)
		assert.Equal(t, "SKEY", cfg.PayTabs.ServerKey)
		assert.Equal(t, OrderStatusFulfillment, cfg.PayTabs.CompleteOrderStatus)
		assert.Equal(t, "sale", cfg.PayTabs.PayPageMode)
		assert.True(t, cfg.PayTabs.Framed)
		assert.False(t, cfg.PayTabs.AdvanceOnAnyStatus)
		assert.Equal(t, 3*time.Second, cfg.PayTabs.Timeout)
	})

	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("DB_HOST", "localhost")
		t.Setenv("PAYTABS_PROFILE_ID", "1")
		t.Setenv("PAYTABS_SERVER_KEY", "k")
		t.Setenv("APP_PORT", "")
		t.Setenv("PAYTABS_REGION", "")
		t.Setenv("PAYTABS_COMPLETE_ORDER_STATUS", "")
		t.Setenv("PAYTABS_TIMEOUT", "garbage")

		cfg := LoadConfig()

		assert.Equal(t, "8080", cfg.AppPort)
		assert.Equal(t, "GLOBAL", cfg.PayTabs.Region)
		assert.Equal(t, OrderStatusCompleted, cfg.PayTabs.CompleteOrderStatus)
		assert.Equal(t, 15*time.Second, cfg.PayTabs.Timeout)
	})
}

func TestPayTabsConfig_Validate(t *testing.T) {
	valid := PayTabsConfig{
		ProfileID:           "1",
		ServerKey:           "k",
		CompleteOrderStatus: OrderStatusValidation,
		PayPageMode:         "auth",
	}
	assert.NoError(t, valid.Validate())

	badStatus := valid
	badStatus.CompleteOrderStatus = "shipped"
	assert.ErrorContains(t, badStatus.Validate(), "complete order status")

	badMode := valid
	badMode.PayPageMode = "capture"
	assert.ErrorContains(t, badMode.Validate(), "pay page mode")

	noKey := valid
	noKey.ServerKey = ""
	assert.Error(t, noKey.Validate())
}
