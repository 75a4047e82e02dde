package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	// 清除环境变量
	os.Clearenv()

	cfg := Load()
	require.NotNil(t, cfg)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.True(t, cfg.DBEnabled)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "smartinfra", cfg.Database.Database)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, "smartinfra/detections", cfg.MQTT.Topic)
	assert.Equal(t, "https://overpass-api.de/api/interpreter", cfg.Overpass.Endpoint)
	assert.Equal(t, 50, cfg.Overpass.RadiusMeters)

	// 评分常量默认值（与评分契约一致）
	assert.Equal(t, 0.6, cfg.Priority.PromotionThreshold)
	assert.Equal(t, "pothole", cfg.Priority.PromotionClass)
	assert.Equal(t, 0.85, cfg.Priority.AutoVerifyThreshold)
	assert.Equal(t, 0.3, cfg.Priority.BucketLow)
	assert.Equal(t, 0.6, cfg.Priority.BucketMedium)
	assert.Equal(t, 0.9, cfg.Priority.BucketHigh)

	assert.Equal(t, "smartinfra:ticket-events", cfg.Ticket.EventStream)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("DB_ENABLED", "false")
	os.Setenv("DB_NAME", "smartinfra_test")
	os.Setenv("PRIORITY_PROMOTION_THRESHOLD", "0.75")
	os.Setenv("PRIORITY_BUCKET_HIGH", "0.95")
	os.Setenv("MQTT_ENABLED", "true")
	defer os.Clearenv()

	cfg := Load()

	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.False(t, cfg.DBEnabled)
	assert.Equal(t, "smartinfra_test", cfg.Database.Database)
	assert.Equal(t, 0.75, cfg.Priority.PromotionThreshold)
	assert.Equal(t, 0.95, cfg.Priority.BucketHigh)
	assert.True(t, cfg.MQTT.Enabled)
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_PORT", "not-a-number")
	os.Setenv("PRIORITY_BUCKET_LOW", "abc")
	defer os.Clearenv()

	cfg := Load()

	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 0.3, cfg.Priority.BucketLow)
}
