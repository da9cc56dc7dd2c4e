package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("ADMIN_IDS", " admin-1, admin-2 ,,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Asia/Kolkata", cfg.AppTimezone)
	assert.Equal(t, int64(100), cfg.DailyCoinCap)
	assert.Equal(t, []string{"admin-1", "admin-2"}, cfg.AdminIDs)
	assert.True(t, cfg.IsAdmin("admin-2"))
	assert.False(t, cfg.IsAdmin("u1"))
	assert.False(t, cfg.UploadsEnabled())
	assert.Equal(t, EventsLog, cfg.EventsDriver)
}

func TestLoad_PostgresNeedsPassword(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DB_PASSWORD", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate_KafkaNeedsBrokers(t *testing.T) {
	cfg := &Config{
		StorageDriver: StorageMemory, EventsDriver: EventsKafka,
		JWTSecret: "0123456789abcdef0123", DailyCoinCap: 100,
		CoinsPerKgCO2: 1, CoinsPerEcoMindPoint: 1, CoinsPerKindnessPoint: 1,
		HTTPRequestTimeout: 1, RateLimitRequests: 1, RateLimitWindow: 1,
	}
	assert.Error(t, cfg.Validate())

	cfg.KafkaBrokers = []string{"localhost:9092"}
	assert.NoError(t, cfg.Validate())
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: 5432, DBName: "d", DBSSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", cfg.DatabaseDSN())
}
