package main

import (
	"fmt"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MqttLogWriter implementuje io.Writer, vše zapsané posílá do MQTT
// na topic logs/<služba>.
//
// Logger vzniká dřív než MQTT klient (klienta vytváří až Ingestor), proto
// se klient připojuje dodatečně přes SetClient. Dokud klient není nebo
// není připojený, zápisy se tiše zahazují (stdout je má tak jako tak).
type MqttLogWriter struct {
	topic string

	mu     sync.RWMutex
	client mqtt.Client
}

// NewMqttLogWriter vytvoří writer pro danou službu.
func NewMqttLogWriter(serviceName string) *MqttLogWriter {
	return &MqttLogWriter{topic: fmt.Sprintf("logs/%s", serviceName)}
}

// SetClient připojí writer ke klientovi.
func (w *MqttLogWriter) SetClient(client mqtt.Client) {
	w.mu.Lock()
	w.client = client
	w.mu.Unlock()
}

// Write: fire-and-forget, na token nečekáme, aby logování nezdržovalo aplikaci.
func (w *MqttLogWriter) Write(p []byte) (int, error) {
	w.mu.RLock()
	client := w.client
	w.mu.RUnlock()

	if client == nil || !client.IsConnectionOpen() {
		return len(p), nil
	}

	// slog buffer po návratu z Write znovu použije, payload musíme zkopírovat.
	payload := make([]byte, len(p))
	copy(payload, p)
	client.Publish(w.topic, 0, false, payload)

	return len(p), nil
}
