package main

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("MQTT_CLIENT_ID", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "smartbin/data", cfg.Topic)
	assert.Equal(t, 60*time.Second, cfg.KeepAlive)
	assert.Equal(t, 2*time.Second, cfg.FlushInterval)
	assert.Equal(t, 5.0, cfg.WeightThreshold)
	assert.Equal(t, 3.0, cfg.FullnessThreshold)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.True(t, strings.HasPrefix(cfg.MQTTClientID, "bin-ingestor-"))
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("MQTT_CLIENT_ID", "ingestor-1")
	t.Setenv("FLUSH_INTERVAL", "500ms")
	t.Setenv("WEIGHT_THRESHOLD", "2.5")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_TO_MQTT", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "ingestor-1", cfg.MQTTClientID)
	assert.Equal(t, 500*time.Millisecond, cfg.FlushInterval)
	assert.Equal(t, 2.5, cfg.WeightThreshold)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.False(t, cfg.LogToMQTT)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"FLUSH_INTERVAL":     "2x",
		"MQTT_KEEPALIVE":     "-1s",
		"FULLNESS_THRESHOLD": "three",
		"LOG_LEVEL":          "chatty",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestConfigLogValueHidesPassword(t *testing.T) {
	cfg := Config{MQTTPassword: "s3cret", MQTTUsername: "admin"}
	assert.NotContains(t, cfg.LogValue().String(), "s3cret")
}
