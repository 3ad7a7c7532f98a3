package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// LiveSource dodává live snapshot (v produkci LiveReader nad Valkey).
type LiveSource interface {
	LiveBins(ctx context.Context) ([]LiveBin, error)
}

// APIHandler sdružuje HTTP handlery nad agregacemi a live pohledem.
type APIHandler struct {
	refresher *Refresher
	live      LiveSource
	logger    *slog.Logger
}

// NewAPIHandler vytváří novou instanci handleru.
func NewAPIHandler(refresher *Refresher, live LiveSource, logger *slog.Logger) *APIHandler {
	return &APIHandler{refresher: refresher, live: live, logger: logger}
}

// RegisterRoutes mapuje URL cesty na handlery.
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/stats", h.handleGetStats)
	mux.HandleFunc("POST /api/stats/refresh", h.handleRefresh)
	mux.HandleFunc("GET /api/bins", h.handleListBins)
	mux.HandleFunc("GET /api/bins/live", h.handleLiveBins)
}

// statsResponse: agregace + příznak chyby. Při chybě jsou data z posledního úspěchu.
type statsResponse struct {
	KPIs      KPIs              `json:"kpis"`
	Histogram []HistogramBucket `json:"histogram"`
	Trend     []TrendPoint      `json:"trend"`
	Error     string            `json:"error,omitempty"`
	Loading   bool              `json:"loading"`
	UpdatedAt *time.Time        `json:"updated_at"`
}

func newStatsResponse(res *Result) statsResponse {
	out := statsResponse{
		KPIs:      res.View.KPIs,
		Histogram: res.View.Histogram,
		Trend:     res.View.Trend,
		Error:     res.Error,
		Loading:   res.Loading,
	}
	if !res.UpdatedAt.IsZero() {
		at := res.UpdatedAt
		out.UpdatedAt = &at
	}
	return out
}

// handleGetStats: GET /api/stats
func (h *APIHandler) handleGetStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, newStatsResponse(h.refresher.Current()))
}

// handleRefresh: POST /api/stats/refresh
// Při chybě vrací 502, v těle ale i poslední platné agregace.
// Obnova doběhne i po odpojení klienta, výsledek je sdílený pro všechny.
func (h *APIHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	if err := h.refresher.Refresh(context.WithoutCancel(r.Context())); err != nil {
		status = http.StatusBadGateway
	}
	h.writeJSON(w, status, newStatsResponse(h.refresher.Current()))
}

// handleListBins: GET /api/bins (koše s posledním měřením a stavem)
func (h *APIHandler) handleListBins(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.refresher.Current().View.Bins)
}

// handleLiveBins: GET /api/bins/live
func (h *APIHandler) handleLiveBins(w http.ResponseWriter, r *http.Request) {
	bins, err := h.live.LiveBins(r.Context())
	if err != nil {
		h.logger.Error("Chyba při čtení live snapshotu", "error", err)
		http.Error(w, "Live data nejsou dostupná", http.StatusServiceUnavailable)
		return
	}
	h.writeJSON(w, http.StatusOK, bins)
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Chyba při zápisu JSON odpovědi", "error", err)
	}
}

// CorsMiddleware obaluje celý router.
// Dashboard běží na jiném originu než API, bez těchto hlaviček by prohlížeč
// odpovědi zahodil.
func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Origin "*": API je jen pro čtení a bez autentizace.
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// Preflight (OPTIONS před POST /api/stats/refresh): odpovíme OK a končíme.
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		// Ostatní requesty jdou dál na router.
		next.ServeHTTP(w, r)
	})
}
