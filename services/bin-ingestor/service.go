package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ReadingStore trvale uloží jedno měření (a případně zaregistruje koš).
type ReadingStore interface {
	SaveReading(ctx context.Context, r Reading) error
}

// ErrStopped vrací Start po Stop.
var ErrStopped = errors.New("ingestor je zastaven")

// Ingestor je jediná instance celé ingestion pipeline v procesu:
// jedno spojení na broker, jeden Batcher, jedna sada baseline.
// Konzumenti live stavu se připojují přes Subscribe, nikdo další
// si vlastní spojení na broker neotevírá.
type Ingestor struct {
	cfg        Config
	store      ReadingStore
	batcher    *Batcher
	subscriber *Subscriber
	logger     *slog.Logger
	metrics    *Metrics
	now        func() time.Time

	// mu chrání stopping a pořadí inflight.Add vůči inflight.Wait.
	mu       sync.Mutex
	stopping bool
	inflight sync.WaitGroup

	cancel context.CancelFunc
	done   chan struct{}
}

// NewIngestor poskládá pipeline. K brokeru se připojí až Start.
func NewIngestor(cfg Config, store ReadingStore, logger *slog.Logger, metrics *Metrics) *Ingestor {
	in := &Ingestor{
		cfg:     cfg,
		store:   store,
		logger:  logger,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
	filter := ChangeFilter{WeightDelta: cfg.WeightThreshold, FullnessDelta: cfg.FullnessThreshold}
	in.batcher = NewBatcher(filter, logger, metrics)
	in.subscriber = NewSubscriber(cfg, in.handleMessage, logger, metrics)
	return in
}

// Start spustí flush smyčku a připojí se k brokeru. Vrací se po prvním
// úspěšném subscribe, při chybě se vše zase zastaví.
func (in *Ingestor) Start(ctx context.Context) error {
	in.mu.Lock()
	if in.stopping {
		in.mu.Unlock()
		return ErrStopped
	}
	runCtx, cancel := context.WithCancel(context.Background())
	in.cancel = cancel
	in.done = make(chan struct{})
	in.mu.Unlock()

	go func() {
		defer close(in.done)
		in.batcher.Run(runCtx, in.cfg.FlushInterval)
	}()

	if err := in.subscriber.Start(ctx); err != nil {
		cancel()
		<-in.done
		return err
	}
	return nil
}

// Stop se odpojí od brokeru, zastaví flush a počká na rozpracované zápisy
// do DB, nejdéle do konce ctx. Měření, která ještě čekala ve frontě na flush,
// se zahodí (do DB už odešla).
func (in *Ingestor) Stop(ctx context.Context) error {
	in.subscriber.Stop()

	in.mu.Lock()
	in.stopping = true
	cancel, done := in.cancel, in.done
	in.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	drained := make(chan struct{})
	go func() {
		in.inflight.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("čekání na rozpracované zápisy: %w", ctx.Err())
	}
}

// Subscribe přihlásí konzumenta k odběru live snapshotu.
func (in *Ingestor) Subscribe() (<-chan *Snapshot, func()) {
	return in.batcher.Subscribe()
}

// Snapshot vrací aktuální live snapshot.
func (in *Ingestor) Snapshot() *Snapshot {
	return in.batcher.Snapshot()
}

// Reset vyprázdní live snapshot i baseline.
func (in *Ingestor) Reset() {
	in.batcher.Reset()
}

// Pending vrací počet měření čekajících na flush.
func (in *Ingestor) Pending() int {
	return in.batcher.Pending()
}

// Ready se zavře, jakmile ingestor poprvé odebírá topic.
func (in *Ingestor) Ready() <-chan struct{} {
	return in.subscriber.Ready()
}

// Client vrací MQTT klienta ingestoru.
func (in *Ingestor) Client() mqtt.Client {
	return in.subscriber.Client()
}

// handleMessage: dekódovat, uložit (vždy) a zařadit do fronty (vždy).
// Filtrace se týká jen live snapshotu, historie v DB je kompletní.
func (in *Ingestor) handleMessage(topic string, payload []byte) {
	reading, err := DecodeReading(payload, in.now())
	if err != nil {
		in.metrics.MessageRejected()
		in.logger.Warn("Zpráva odmítnuta", "topic", topic, "důvod", err)
		return
	}
	in.metrics.MessageAccepted()

	in.persist(reading)
	in.batcher.Enqueue(reading)
}

// persist zapisuje asynchronně, aby pomalá DB nezdržovala příjem zpráv.
// Chyba se jen zaloguje, měření se znovu nezkouší (at-most-once).
func (in *Ingestor) persist(r Reading) {
	in.mu.Lock()
	if in.stopping {
		in.mu.Unlock()
		in.logger.Warn("Ingestor se vypíná, měření se neuloží", "bin_id", r.BinID)
		return
	}
	in.inflight.Add(1)
	in.mu.Unlock()

	in.metrics.PersistStarted()
	go func() {
		defer in.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), in.cfg.PersistTimeout)
		defer cancel()

		err := in.store.SaveReading(ctx, r)
		in.metrics.PersistDone(err)
		if err != nil {
			in.logger.Error("Chyba při ukládání měření", "bin_id", r.BinID, "error", err)
			return
		}
		in.logger.Debug("Měření uloženo", "bin_id", r.BinID, "weight", r.Weight, "fullness", r.Fullness)
	}()
}
