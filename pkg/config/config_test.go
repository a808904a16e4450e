package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LICENSE_KEY", "")
	t.Setenv("DB_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.DB.Driver)
	assert.Equal(t, "", cfg.License.Key, "sin LICENSE_KEY la instalación arranca en modo demo")
	assert.Equal(t, 24*time.Hour, cfg.Settlement.AccessValidity)
	assert.Equal(t, 5, cfg.Settlement.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Settlement.GrantTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("LICENSE_KEY", "  LIC-ABCDEF0123456789 ")
	t.Setenv("MPESA_TIMEOUT", "45")
	t.Setenv("SETTLEMENT_RETRY_BASE_DELAY", "500ms")
	t.Setenv("ACCESS_VALIDITY_HOURS", "12")
	t.Setenv("SETTLEMENT_MAX_ATTEMPTS", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "LIC-ABCDEF0123456789", cfg.License.Key)
	assert.Equal(t, 45*time.Second, cfg.MPesa.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Settlement.RetryBaseDelay)
	assert.Equal(t, 12*time.Hour, cfg.Settlement.AccessValidity)
	assert.Equal(t, 1, cfg.Settlement.MaxAttempts, "al menos un intento")
}

func TestLoad_DriverInvalido(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	_, err := Load()
	assert.Error(t, err)
}

func TestDBConfig_DSN(t *testing.T) {
	c := DBConfig{Host: "db", Port: 5432, User: "app", Password: "p@ss:word", DBName: "hotspot", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:p%40ss%3Aword@db:5432/hotspot?sslmode=disable", c.DSN())

	c.DatabaseURL = "postgres://x@y/z"
	assert.Equal(t, "postgres://x@y/z", c.ConnectionString())
}
