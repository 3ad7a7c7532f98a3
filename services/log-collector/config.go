package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Config drží nastavení služby Log Collector.
type Config struct {
	MQTTBroker   string
	MQTTUsername string
	MQTTPassword string
	MQTTClientID string

	// LogTopic: odběr logů všech služeb (MqttLogWriter publikuje na logs/<služba>).
	LogTopic string

	// LogDir: adresář, kam se píše jeden soubor na službu.
	// V Dockeru to bude typicky namapovaný volume.
	LogDir string

	ReconnectMax time.Duration
	LogLevel     slog.Level
}

// LoadConfig načte konfiguraci z OS (a volitelně z .env).
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		MQTTBroker:   getEnv("MQTT_BROKER", "wss://broker.local:8884/mqtt"),
		MQTTUsername: getEnv("MQTT_USERNAME", ""),
		MQTTPassword: getEnv("MQTT_PASSWORD", ""),
		MQTTClientID: getEnv("MQTT_CLIENT_ID", ""),
		LogTopic:     getEnv("LOG_TOPIC", "logs/#"),
		LogDir:       getEnv("LOG_DIR", "/var/log/smartbin"),
	}
	if cfg.MQTTClientID == "" {
		cfg.MQTTClientID = "log-collector-" + uuid.NewString()[:8]
	}

	d, err := time.ParseDuration(getEnv("MQTT_RECONNECT_MAX", "30s"))
	if err != nil || d <= 0 {
		return cfg, fmt.Errorf("neplatná hodnota MQTT_RECONNECT_MAX: %q", getEnv("MQTT_RECONNECT_MAX", ""))
	}
	cfg.ReconnectMax = d

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return cfg, fmt.Errorf("neplatná hodnota LOG_LEVEL: %w", err)
	}
	return cfg, nil
}

// getEnv je pomocná funkce pro bezpečné čtení ENV.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
