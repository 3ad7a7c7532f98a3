package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MessageHandler zpracuje jednu přijatou zprávu. Volá se z goroutiny
// paho klienta, zprávy chodí postupně v pořadí příjmu.
type MessageHandler func(topic string, payload []byte)

// Subscriber drží jediné spojení na broker a odběr jednoho topicu.
type Subscriber struct {
	client  mqtt.Client
	topic   string
	handler MessageHandler
	logger  *slog.Logger
	metrics *Metrics

	ready     chan struct{}
	readyOnce sync.Once
	subErr    chan error
}

// NewSubscriber připraví klienta, ale ještě se nepřipojuje (viz Start).
func NewSubscriber(cfg Config, handler MessageHandler, logger *slog.Logger, metrics *Metrics) *Subscriber {
	s := &Subscriber{
		topic:   cfg.Topic,
		handler: handler,
		logger:  logger,
		metrics: metrics,
		ready:   make(chan struct{}),
		subErr:  make(chan error, 1),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientID).
		SetUsername(cfg.MQTTUsername).
		SetPassword(cfg.MQTTPassword).
		SetKeepAlive(cfg.KeepAlive).
		SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}).
		SetCleanSession(true).
		SetOrderMatters(true).
		// Reconnect řeší paho: exponenciální backoff shora omezený ReconnectMax.
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Second).
		SetMaxReconnectInterval(cfg.ReconnectMax)

	// Clean session = po reconnectu broker odběr zapomene, proto
	// subscribe děláme v OnConnect, tj. při každém (znovu)připojení.
	opts.SetOnConnectHandler(s.onConnect)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.metrics.ConnectionLost()
		s.logger.Warn("Spojení s brokerem ztraceno, čekám na reconnect", "error", err)
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		s.logger.Info("Znovu se připojuji k brokeru")
	})

	s.client = mqtt.NewClient(opts)
	return s
}

// Client vrací paho klienta (používá ho MqttLogWriter).
func (s *Subscriber) Client() mqtt.Client {
	return s.client
}

// Ready se zavře po prvním úspěšném připojení a subscribe.
func (s *Subscriber) Ready() <-chan struct{} {
	return s.ready
}

// Start se připojí a počká na první úspěšný subscribe.
// Paho zkouší připojení opakovaně, takže Start končí až úspěchem,
// chybou odběru nebo zrušením ctx.
func (s *Subscriber) Start(ctx context.Context) error {
	token := s.client.Connect()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("připojení k brokeru: %w", err)
		}
	case <-ctx.Done():
		s.client.Disconnect(0)
		return ctx.Err()
	}

	select {
	case <-s.ready:
		return nil
	case err := <-s.subErr:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop se odpojí od brokeru (250 ms na dokončení rozpracované komunikace).
func (s *Subscriber) Stop() {
	s.client.Disconnect(250)
}

// onConnect běží v samostatné goroutině paho, čekat na token je tu v pořádku.
func (s *Subscriber) onConnect(c mqtt.Client) {
	token := c.Subscribe(s.topic, 0, s.onMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		s.logger.Error("Subscribe selhal", "topic", s.topic, "error", err)
		select {
		case s.subErr <- fmt.Errorf("subscribe %s: %w", s.topic, err):
		default:
		}
		return
	}

	s.logger.Info("Poslouchám na topicu", "topic", s.topic)
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *Subscriber) onMessage(_ mqtt.Client, msg mqtt.Message) {
	s.handler(msg.Topic(), msg.Payload())
}
