package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	v, err := NewViper()
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "paillier", cfg.Encryption.Scheme)
	assert.Equal(t, "USDC", cfg.Payment.DefaultToken)
	assert.Equal(t, 5*time.Minute, cfg.Aggregation.DecryptRetryAfter)
	assert.Equal(t, 15*time.Second, cfg.Scheduler.Interval)
	assert.Equal(t, "http", cfg.Telemetry.Protocol)
	assert.Empty(t, cfg.Telemetry.Endpoint)
	assert.False(t, cfg.HTTP.AllowSimulatedTime)
	assert.Empty(t, cfg.Admins)
	assert.Empty(t, cfg.ConfigFile)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CIPHERPOLL_DATABASE_DRIVER", "postgres")
	t.Setenv("CIPHERPOLL_PAYMENT_DEFAULT_TOKEN", "DAI")
	t.Setenv("CIPHERPOLL_AGGREGATION_DECRYPT_RETRY_AFTER", "90s")

	v, err := NewViper()
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "DAI", cfg.Payment.DefaultToken)
	assert.Equal(t, 90*time.Second, cfg.Aggregation.DecryptRetryAfter)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	body := []byte("encryption:\n  scheme: plaintext\nlog:\n  level: debug\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cipherpoll.yaml"), body, 0o600))

	v, err := NewViper()
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "plaintext", cfg.Encryption.Scheme)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.NotEmpty(t, cfg.ConfigFile)
}

func TestValidate(t *testing.T) {
	cfg := Config{
		Database:   DatabaseConfig{Driver: "oracle"},
		Encryption: EncryptionConfig{Scheme: "paillier"},
		Payment:    PaymentConfig{DefaultToken: "USDC"},
	}
	assert.Error(t, cfg.Validate())

	cfg.Database.Driver = "sqlite"
	assert.NoError(t, cfg.Validate())

	cfg.Telemetry.Protocol = "zipkin"
	assert.Error(t, cfg.Validate())
	cfg.Telemetry.Protocol = "grpc"
	assert.NoError(t, cfg.Validate())

	cfg.Encryption.Scheme = "rsa"
	assert.Error(t, cfg.Validate())
}
