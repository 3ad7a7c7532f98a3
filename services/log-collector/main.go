package main

import (
	"context"
	"crypto/tls"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

func main() {
	// 1. Načtení konfigurace
	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("Neplatná konfigurace", "error", err)
		os.Exit(1)
	}

	// 2. Inicializace vlastního loggeru. Vlastní logy collectoru jdou jen na stdout, jinak by se zacyklily přes broker.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	logger.Info("Startuji Log Collector", "dir", cfg.LogDir, "topic", cfg.LogTopic)

	// 3. Příprava adresáře pro logy
	collector, err := NewCollector(cfg.LogDir, logger)
	if err != nil {
		logger.Error("Nelze připravit adresář pro logy", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. Připojení k MQTT (subscribe proběhne v OnConnect)
	client := newClient(cfg, collector, logger)
	token := client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			logger.Error("MQTT Connection failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		client.Disconnect(0)
		return
	}
	defer client.Disconnect(250)

	// 5. Wait loop
	<-ctx.Done()
	logger.Info("Ukončuji službu...")
}

// newClient: stejné chování spojení jako bin-ingestor (auto reconnect,
// subscribe v OnConnect, protože clean session odběr po reconnectu zahodí).
func newClient(cfg Config, collector *Collector, logger *slog.Logger) mqtt.Client {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID).
		SetUsername(cfg.MQTTUsername).
		SetPassword(cfg.MQTTPassword).
		SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Second).
		SetMaxReconnectInterval(cfg.ReconnectMax)

	opts.SetOnConnectHandler(func(c mqtt.Client) {
		token := c.Subscribe(cfg.LogTopic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			collector.HandleMessage(msg.Topic(), msg.Payload())
		})
		if token.Wait(); token.Error() != nil {
			logger.Error("Subscribe failed", "topic", cfg.LogTopic, "error", token.Error())
			return
		}
		logger.Info("Poslouchám logy", "topic", cfg.LogTopic)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("Spojení s brokerem ztraceno, čekám na reconnect", "error", err)
	})

	return mqtt.NewClient(opts)
}
