package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	// 1. Načtení konfigurace
	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("Neplatná konfigurace", "error", err)
		os.Exit(1)
	}

	// 2. Nastavení logování na JSON (standard pro kontejnery)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("Startuji Bin Stats", "port", cfg.HTTPPort, "window", cfg.Window.String())

	// 3. Metriky
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := NewMetrics(registry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. Připojení k Databázi. pgxpool vytvoří sadu spojení, které se recyklují (Thread-safe).
	dbPool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Error("Kritická chyba: Nelze se připojit k DB", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	// 5. Připojení k Valkey (live snapshot od bin-ingestoru)
	rdb := redis.NewClient(&redis.Options{Addr: cfg.ValkeyAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("Kritická chyba: Nelze se připojit k Valkey", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// 6. Inicializace komponent (Wiring). Refresher běží na pozadí po celou dobu života procesu.
	refresher := NewRefresher(NewRepository(dbPool), cfg, logger, metrics)
	go refresher.Run(ctx)

	api := NewAPIHandler(refresher, NewLiveReader(rdb, logger), logger)

	// 7. Nastavení Routeru
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Healthcheck pro Docker: proces žije, i když poslední obnova selhala.
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// 8. Spuštění HTTP serveru. Handler obalíme CorsMiddlewarem, aby fungovalo volání z frontendu.
	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           CorsMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 9. Graceful shutdown: po signálu server dokončí rozpracované requesty.
	go func() {
		<-ctx.Done()
		logger.Info("Ukončuji službu...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server se neukončil čistě", "error", err)
		}
	}()

	logger.Info("HTTP server naslouchá", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server spadl", "error", err)
		os.Exit(1)
	}
}
