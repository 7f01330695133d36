package config

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "STORAGE_DRIVER", "CART_TTL", "KAFKA_BROKERS", "LOCATION", "CHECKOUT_MAX_ATTEMPTS"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "postgres", cfg.StorageDriver)
	assert.Equal(t, 72*time.Hour, cfg.CartTTL)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, 5, cfg.CheckoutMaxAttempts)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("CART_TTL", "30m")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("REDIS_DB", "nope")
	t.Setenv("LOCATION", "America/Bogota")

	cfg := Load()
	assert.Equal(t, "memory", cfg.StorageDriver)
	assert.Equal(t, 30*time.Minute, cfg.CartTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, "America/Bogota", cfg.Location.String())
}
