package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentalcore/internal/domain/fees"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.True(t, cfg.Dev())
	assert.Equal(t, StorageMemory, cfg.Storage.Mode)
	assert.Equal(t, BrokerLocal, cfg.Broker.Mode)
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}, cfg.Outbox.RetryBackoff)
	assert.Equal(t, "0 */15 * * * *", cfg.Expiry.Spec)
	assert.Equal(t, 100, cfg.Expiry.Batch)
}

func TestLoadNormalisesModes(t *testing.T) {
	t.Setenv("STORAGE_MODE", " Mongo ")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0")
	t.Setenv("BROKER_MODE", "KAFKA")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, ,kafka-2:9092")
	t.Setenv("S3_ENDPOINT", "minio:9000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageMongo, cfg.Storage.Mode)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Broker.KafkaBrokers)
	assert.Equal(t, "minio:9000", cfg.S3.PublicEndpoint)
}

func TestValidate(t *testing.T) {
	cases := map[string]map[string]string{
		"mongo without uri":    {"STORAGE_MODE": "mongo"},
		"kafka without broker": {"BROKER_MODE": "kafka"},
		"unknown storage":      {"STORAGE_MODE": "postgres"},
		"unknown broker":       {"BROKER_MODE": "nats"},
		"zero batch":           {"EXPIRY_BATCH": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadFeeSchedule(t *testing.T) {
	s, err := LoadFeeSchedule(filepath.Join("..", "..", "..", "data", "fee_schedule.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "THB", s.Currency)
	assert.Equal(t, fees.KindPercent, s.PlatformFee.Kind)
	assert.Equal(t, int64(500), s.PlatformFee.BasisPoints)
	assert.Equal(t, int64(15000), s.DeliveryFee.Amount)

	bad := filepath.Join(t.TempDir(), "fees.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("currency: THB\nplatform_fee:\n  kind: bribe\n"), 0o600))
	_, err = LoadFeeSchedule(bad)
	assert.Error(t, err)

	_, err = LoadFeeSchedule(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
