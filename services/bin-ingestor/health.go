package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/process"
)

// healthStatus je odpověď GET /health.
type healthStatus struct {
	Status        string       `json:"status"`
	MQTTConnected bool         `json:"mqtt_connected"`
	LiveBins      int          `json:"live_bins"`
	Pending       int          `json:"pending"`
	Process       processStats `json:"process"`
}

// processStats: kolik si bere tento proces. RSS je skutečně obsazená fyzická RAM.
type processStats struct {
	RSSMB      float64 `json:"rss_mb"`
	CPUPercent float64 `json:"cpu_percent"`
}

func readProcessStats() processStats {
	var stats processStats
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return stats
	}
	if mem, err := p.MemoryInfo(); err == nil {
		stats.RSSMB = float64(mem.RSS) / 1024.0 / 1024.0
	}
	if cpu, err := p.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	return stats
}

// newHealthMux: healthcheck pro Docker/K8s, Prometheus metriky a reset live snapshotu.
func newHealthMux(in *Ingestor, gatherer prometheus.Gatherer, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		connected := in.Client().IsConnectionOpen()
		status := healthStatus{
			Status:        "ok",
			MQTTConnected: connected,
			LiveBins:      in.Snapshot().Len(),
			Pending:       in.Pending(),
			Process:       readProcessStats(),
		}
		code := http.StatusOK
		if !connected {
			// Bez brokeru nechodí nová data, live pohled stárne.
			status.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(status); err != nil {
			logger.Error("Chyba při zápisu JSON odpovědi", "error", err)
		}
	})

	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("POST /admin/live/reset", func(w http.ResponseWriter, r *http.Request) {
		in.Reset()
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

// startHealthServer spustí HTTP server s health/metrics endpointy.
func startHealthServer(port string, mux *http.ServeMux, logger *slog.Logger) {
	logger.Info("Health server běží", "port", port)
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		logger.Error("Health server spadl", "error", err)
	}
}
