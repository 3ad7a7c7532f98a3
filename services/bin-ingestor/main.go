package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

func main() {
	// 1. Načtení konfigurace (ENV, volitelně .env)
	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("Neplatná konfigurace", "error", err)
		os.Exit(1)
	}

	// 2. Setup loggeru
	// Stdout vždy, MQTT volitelně. MQTT writer dostane klienta až po vytvoření Ingestoru.
	mqttWriter := NewMqttLogWriter("bin-ingestor")
	var out io.Writer = os.Stdout
	if cfg.LogToMQTT {
		out = io.MultiWriter(os.Stdout, mqttWriter)
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	logger.Info("Spouštím službu Bin Ingestor", "config", cfg)

	// 3. Prometheus registry (Go runtime + proces + naše metriky)
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := NewMetrics(registry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. Postgres: historie všech měření + registr košů.
	repo, err := NewRepository(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Error("Kritická chyba: Nelze se připojit k DB", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	// 5. Valkey: live snapshot pro ostatní služby.
	rdb := redis.NewClient(&redis.Options{Addr: cfg.ValkeyAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("Kritická chyba: Nelze se připojit k Valkey", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// 6. Inicializace komponent (Wiring)
	ingestor := NewIngestor(cfg, repo, logger, metrics)
	mqttWriter.SetClient(ingestor.Client())

	updates, unsubscribe := ingestor.Subscribe()
	defer unsubscribe()
	go NewLiveStore(rdb, logger).Run(ctx, updates)

	// 7. Spuštění Healthcheck serveru (pro Docker/K8s)
	go startHealthServer(cfg.HTTPPort, newHealthMux(ingestor, registry, logger), logger)

	// 8. Připojení k MQTT. Start čeká na první úspěšné připojení, paho mezitím zkouší znovu.
	if err := ingestor.Start(ctx); err != nil {
		logger.Error("Nepodařilo se spustit ingestor", "broker", cfg.MQTTBroker, "error", err)
		os.Exit(1)
	}
	logger.Info("Připojeno k MQTT", "broker", cfg.MQTTBroker, "topic", cfg.Topic)

	// 9. Graceful shutdown: čekáme na SIGINT/SIGTERM.
	<-ctx.Done()
	logger.Info("Ukončuji službu...")

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.DrainTimeout)
	defer cancel()
	if err := ingestor.Stop(drainCtx); err != nil {
		logger.Warn("Některé zápisy se nestihly dokončit", "error", err)
	}
}
