package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StorePostgres, cfg.StoreDriver)
	assert.True(t, cfg.AutoMigrateDB)
	assert.Equal(t, 72*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 5*time.Second, cfg.PushTimeout)
	assert.Equal(t, 30*time.Second, cfg.HousekeepingInterval)
	assert.Equal(t, 5*time.Minute, cfg.StaleAfter)
	assert.Equal(t, 100.0, cfg.MaxFixAccuracy)
	assert.Equal(t, 32, cfg.FixBuffer)
	assert.Equal(t, "travel.fixes", cfg.NATSFixSubject)
	assert.Equal(t, "travel.push", cfg.NATSPushSubject)
	assert.Equal(t, "travel.events", cfg.NATSEventSubject)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("DB_AUTO_MIGRATE", "off")
	t.Setenv("PUSH_TIMEOUT_MS", "250")
	t.Setenv("MAX_FIX_ACCURACY_M", "0")
	t.Setenv("TOKEN_TTL_HOURS", "1")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.False(t, cfg.AutoMigrateDB)
	assert.Equal(t, 250*time.Millisecond, cfg.PushTimeout)
	assert.Equal(t, 0.0, cfg.MaxFixAccuracy)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Contains(t, cfg.DB.DSN(), "host=db.internal")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"STORE_DRIVER":              "mysql",
		"PUSH_TIMEOUT_MS":           "-1",
		"HOUSEKEEPING_INTERVAL_SEC": "abc",
		"MAX_FIX_ACCURACY_M":        "-5",
		"DB_AUTO_MIGRATE":           "maybe",
		"FIX_BUFFER":                "0",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "s")
			t.Setenv(key, val)
			_, err := Load()
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestLoad_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.Error(t, err)
}
