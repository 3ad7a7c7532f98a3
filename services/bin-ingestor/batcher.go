package main

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// ChangeFilter rozhoduje, jestli je měření "významné" vůči baseline,
// tedy vůči poslednímu měření, které se do live snapshotu propsalo.
type ChangeFilter struct {
	WeightDelta   float64 // kg
	FullnessDelta float64 // procentní body
}

// DefaultChangeFilter: 5 kg nebo 3 % zaplnění.
func DefaultChangeFilter() ChangeFilter {
	return ChangeFilter{WeightDelta: 5, FullnessDelta: 3}
}

// Significant vrací true, pokud se má r propsat do snapshotu.
// První měření koše (hasBaseline == false) je významné vždy.
func (f ChangeFilter) Significant(baseline Reading, hasBaseline bool, r Reading) bool {
	if !hasBaseline {
		return true
	}
	return math.Abs(r.Weight-baseline.Weight) >= f.WeightDelta ||
		math.Abs(r.Fullness-baseline.Fullness) >= f.FullnessDelta
}

// Batcher sbírá měření mezi dvěma flushi a při flushi z nich skládá
// nový live snapshot.
//
// Fronta a mapa baseline patří jen Batcheru a chrání je mu. Snapshot se
// publikuje přes atomic.Pointer, čtenáři tak nikdy nevidí napůl hotový stav.
type Batcher struct {
	filter  ChangeFilter
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time

	mu        sync.Mutex
	queue     []Reading
	baselines map[string]Reading

	snapshot atomic.Pointer[Snapshot]

	subMu   sync.Mutex
	subs    map[uint64]chan *Snapshot
	nextSub uint64
}

// NewBatcher vytvoří Batcher s prázdným snapshotem.
func NewBatcher(filter ChangeFilter, logger *slog.Logger, metrics *Metrics) *Batcher {
	b := &Batcher{
		filter:    filter,
		logger:    logger,
		metrics:   metrics,
		now:       func() time.Time { return time.Now().UTC() },
		baselines: make(map[string]Reading),
		subs:      make(map[uint64]chan *Snapshot),
	}
	b.snapshot.Store(emptySnapshot())
	return b
}

// Enqueue zařadí měření do fronty. Vyhodnotí se až při příštím flushi.
func (b *Batcher) Enqueue(r Reading) {
	b.mu.Lock()
	b.queue = append(b.queue, r)
	b.mu.Unlock()
}

// Pending vrací počet měření čekajících na flush.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Snapshot vrací aktuální live snapshot. Nikdy nevrací nil.
func (b *Batcher) Snapshot() *Snapshot {
	return b.snapshot.Load()
}

// Flush jednou projde celou frontu v pořadí příchodu a propíše významná
// měření do nového snapshotu. Vrací true, pokud se snapshot vyměnil.
// Když se nic nepropsalo, snapshot ani odběratelé se nemění.
func (b *Batcher) Flush() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.queue) == 0 {
		return false
	}
	queue := b.queue
	b.queue = nil

	prev := b.snapshot.Load()
	revision := prev.Version + 1

	forwarded := make(map[string]BinView)
	for _, r := range queue {
		base, ok := b.baselines[r.BinID]
		if !b.filter.Significant(base, ok, r) {
			continue
		}
		// Baseline posouváme jen při propsání. Malé odchylky se tak
		// sčítají vůči poslední významné hodnotě, ne vůči poslední surové.
		b.baselines[r.BinID] = r
		forwarded[r.BinID] = r.view(revision)
	}

	b.metrics.Flushed(len(forwarded), len(queue)-len(forwarded))
	if len(forwarded) == 0 {
		b.logger.Debug("Flush bez změn", "zpracováno", len(queue))
		return false
	}

	bins := make(map[string]BinView, len(prev.bins)+len(forwarded))
	for id, v := range prev.bins {
		bins[id] = v
	}
	for id, v := range forwarded {
		bins[id] = v
	}
	next := &Snapshot{
		bins:       bins,
		Version:    revision,
		Generation: prev.Generation,
		UpdatedAt:  b.now(),
	}
	b.snapshot.Store(next)
	b.metrics.LiveBins(len(bins))
	b.logger.Debug("Live snapshot aktualizován", "verze", next.Version, "propsáno", len(forwarded), "zpracováno", len(queue))

	b.notify(next)
	return true
}

// Reset vyprázdní snapshot, frontu i všechny baseline. Další měření
// každého koše se tak znovu propíše jako první.
func (b *Batcher) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev := b.snapshot.Load()
	b.queue = nil
	b.baselines = make(map[string]Reading)

	next := &Snapshot{
		bins:       make(map[string]BinView),
		Version:    prev.Version + 1,
		Generation: prev.Generation + 1,
		UpdatedAt:  b.now(),
	}
	b.snapshot.Store(next)
	b.metrics.LiveBins(0)
	b.logger.Info("Live snapshot resetován", "generace", next.Generation)

	b.notify(next)
}

// Run spouští flush v pevném intervalu, dokud neskončí ctx.
func (b *Batcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Flush()
		}
	}
}

// Subscribe zaregistruje odběratele snapshotu. Kanál má kapacitu 1:
// pomalý odběratel dostane vždy jen nejnovější snapshot, starší se zahodí.
// Vrácená funkce odběr zruší a kanál zavře.
func (b *Batcher) Subscribe() (<-chan *Snapshot, func()) {
	ch := make(chan *Snapshot, 1)

	b.subMu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = ch
	b.subMu.Unlock()

	cancel := sync.OnceFunc(func() {
		b.subMu.Lock()
		delete(b.subs, id)
		close(ch)
		b.subMu.Unlock()
	})
	return ch, cancel
}

func (b *Batcher) notify(s *Snapshot) {
	b.subMu.Lock()
	defer b.subMu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- s:
		default:
			// Odběratel ještě nepřevzal předchozí snapshot, nahradíme ho.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}
