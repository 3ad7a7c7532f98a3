package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Source je zdroj dat pro agregace (v produkci Repository nad Postgresem).
type Source interface {
	ListBins(ctx context.Context) ([]Bin, error)
	ReadingsSince(ctx context.Context, since time.Time) ([]Reading, error)
}

// Result je stav agregací, který vidí API.
// Po chybě zůstává View z posledního úspěšného výpočtu a Error je vyplněný.
type Result struct {
	View View

	// Error: text poslední chyby, prázdný po úspěchu.
	Error string

	// Loading: zatím neproběhl žádný pokus o načtení.
	Loading bool

	// UpdatedAt: čas posledního úspěšného výpočtu (nula, dokud žádný nebyl).
	UpdatedAt time.Time
}

// Refresher periodicky přepočítává agregace z trailing okna měření.
type Refresher struct {
	source   Source
	window   time.Duration
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *Metrics
	now      func() time.Time

	// mu serializuje Refresh (tick vs. ruční refresh z API).
	mu    sync.Mutex
	state atomic.Pointer[Result]
}

// NewRefresher vytvoří refresher. Do prvního Refresh je stav Loading
// s prázdným View.
func NewRefresher(source Source, cfg Config, logger *slog.Logger, metrics *Metrics) *Refresher {
	r := &Refresher{
		source:   source,
		window:   cfg.Window,
		interval: cfg.RefreshInterval,
		timeout:  cfg.QueryTimeout,
		logger:   logger,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}
	r.state.Store(&Result{View: ComputeView(nil, nil, time.Time{}), Loading: true})
	return r
}

// Current vrací poslední stav. Nikdy nevrací nil.
func (r *Refresher) Current() *Result {
	return r.state.Load()
}

// Refresh načte koše a měření v okně (souběžně) a přepočítá agregace.
// Při chybě se předchozí View ponechá, nastaví se Error a chyba se vrátí.
// Zrušení ctx volajícím není chyba zdroje dat, stav se pak nemění.
func (r *Refresher) Refresh(parent context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, cancel := context.WithTimeout(parent, r.timeout)
	defer cancel()

	started := time.Now()
	now := r.now()
	since := now.Add(-r.window)

	var (
		bins     []Bin
		readings []Reading
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bins, err = r.source.ListBins(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		readings, err = r.source.ReadingsSince(gctx, since)
		return err
	})

	if err := g.Wait(); err != nil {
		if parent.Err() != nil {
			r.logger.Debug("Obnova agregací přerušena volajícím", "error", err)
			return fmt.Errorf("obnova agregací přerušena: %w", parent.Err())
		}

		prev := r.state.Load()
		next := *prev
		next.Error = err.Error()
		next.Loading = false
		r.state.Store(&next)

		r.metrics.RefreshFailed(time.Since(started).Seconds())
		r.logger.Error("Obnova agregací selhala, ponechávám poslední stav", "error", err)
		return fmt.Errorf("obnova agregací: %w", err)
	}

	view := ComputeView(bins, readings, now)
	r.state.Store(&Result{View: view, UpdatedAt: now})

	r.metrics.RefreshSucceeded(time.Since(started).Seconds(), view)
	r.logger.Debug("Agregace přepočítány", "bins", len(bins), "readings", len(readings), "trend_points", len(view.Trend))
	return nil
}

// Run obnoví agregace hned a pak v pevném intervalu, dokud neskončí ctx.
// Chyba jedné obnovy smyčku nezastaví, další tick to zkusí znovu.
func (r *Refresher) Run(ctx context.Context) {
	_ = r.Refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = r.Refresh(ctx)
		}
	}
}
