package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"APP_ENV", "HTTP_ADDR", "STORAGE_DRIVER", "MONGO_URI", "POSTGRES_DSN", "BROKER_DRIVER",
	"KAFKA_BROKERS", "LOCK_WAIT", "TX_RETRY_ATTEMPTS", "RETRY_BACKOFF", "REDIS_DB", "KAFKA_CONSUME_LISTINGS",
}

// clearEnv blanks every key so values from the host do not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StorageMemory, cfg.StorageDriver)
	assert.Equal(t, BrokerLog, cfg.BrokerDriver)
	assert.Equal(t, 2*time.Second, cfg.LockWait)
	assert.Equal(t, 3, cfg.TxRetryAttempts)
	assert.Equal(t, []time.Duration{50 * time.Millisecond, 200 * time.Millisecond, time.Second}, cfg.RetryBackoff)
	assert.True(t, cfg.KafkaConsume)
}

func TestLoadReadsDotEnvFile(t *testing.T) {
	clearEnv(t)
	for _, k := range []string{"STORAGE_DRIVER", "POSTGRES_DSN", "LOCK_WAIT"} {
		require.NoError(t, os.Unsetenv(k))
	}
	path := filepath.Join(t.TempDir(), ".env")
	content := "STORAGE_DRIVER=postgres\nPOSTGRES_DSN=postgres://localhost/rentals\nLOCK_WAIT=750ms\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Cleanup(func() {
		for _, k := range []string{"STORAGE_DRIVER", "POSTGRES_DSN", "LOCK_WAIT"} {
			_ = os.Unsetenv(k)
		}
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, StoragePostgres, cfg.StorageDriver)
	assert.Equal(t, "postgres://localhost/rentals", cfg.PostgresDSN)
	assert.Equal(t, 750*time.Millisecond, cfg.LockWait)
}

func TestLoadValidatesDrivers(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		msg  string
	}{
		{"mongo without uri", map[string]string{"STORAGE_DRIVER": "mongo"}, "MONGO_URI"},
		{"postgres without dsn", map[string]string{"STORAGE_DRIVER": "postgres"}, "POSTGRES_DSN"},
		{"unknown storage", map[string]string{"STORAGE_DRIVER": "sqlite"}, "unknown STORAGE_DRIVER"},
		{"kafka without brokers", map[string]string{"BROKER_DRIVER": "kafka"}, "KAFKA_BROKERS"},
		{"zero retries", map[string]string{"TX_RETRY_ATTEMPTS": "0"}, "TX_RETRY_ATTEMPTS"},
		{"bad duration", map[string]string{"LOCK_WAIT": "soon"}, "LOCK_WAIT"},
		{"bad backoff", map[string]string{"RETRY_BACKOFF": "1s,later"}, "RETRY_BACKOFF"},
		{"bad bool", map[string]string{"KAFKA_CONSUME_LISTINGS": "maybe"}, "KAFKA_CONSUME_LISTINGS"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestKafkaBrokersAreTrimmed(t *testing.T) {
	clearEnv(t)
	t.Setenv("BROKER_DRIVER", "kafka")
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}
