package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 72*time.Hour, cfg.JWTExpiration)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Nil(t, cfg.KafkaBrokers)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("JWT_EXPIRES_IN", "1h")
	t.Setenv("CARRIER_BASE_URL", "https://carrier.example.com/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 6543, cfg.DB.Port)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, time.Hour, cfg.JWTExpiration)
	assert.Equal(t, "https://carrier.example.com", cfg.Carrier.BaseURL)
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_PORT", "abc")

	_, err := Load()
	assert.ErrorContains(t, err, "invalid DB_PORT")
}
