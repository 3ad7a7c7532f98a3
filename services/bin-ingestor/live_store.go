package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// liveHashKey: HASH, pole = ID koše, hodnota = JSON BinView.
	liveHashKey = "bins:live"
	// liveChannel: Pub/Sub kanál, posílají se na něj ID změněných košů (CSV).
	liveChannel = "bins:live:changed"
)

// LiveStore zrcadlí live snapshot do Valkey, odkud ho čte bin-stats.
// Je to jeden z odběratelů Ingestor.Subscribe.
type LiveStore struct {
	rdb     *redis.Client
	logger  *slog.Logger
	timeout time.Duration

	// Co už je ve Valkey zapsáno. Používá jen goroutina Run.
	written    bool
	generation uint64
	version    uint64
}

// NewLiveStore vytvoří zrcadlo nad existujícím klientem.
func NewLiveStore(rdb *redis.Client, logger *slog.Logger) *LiveStore {
	return &LiveStore{rdb: rdb, logger: logger, timeout: 5 * time.Second}
}

// Run zapisuje snapshoty z updates, dokud neskončí ctx nebo se kanál nezavře.
func (s *LiveStore) Run(ctx context.Context, updates <-chan *Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, s.timeout)
			if err := s.Write(writeCtx, snap); err != nil {
				// Neúspěšné položky zůstanou "nezapsané" a půjdou znovu s dalším snapshotem.
				s.logger.Error("Chyba update Valkey", "error", err)
			}
			cancel()
		}
	}
}

// Write zapíše do Valkey změny od posledního úspěšného zápisu.
func (s *LiveStore) Write(ctx context.Context, snap *Snapshot) error {
	reset, views := pendingViews(snap, s.written, s.generation, s.version)
	if !reset && len(views) == 0 {
		return nil
	}

	pipe := s.rdb.TxPipeline()
	if reset {
		pipe.Del(ctx, liveHashKey)
	}
	if len(views) > 0 {
		fields := make([]any, 0, len(views)*2)
		ids := make([]string, 0, len(views))
		for _, v := range views {
			data, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("serializace koše %s: %w", v.ID, err)
			}
			fields = append(fields, v.ID, data)
			ids = append(ids, v.ID)
		}
		pipe.HSet(ctx, liveHashKey, fields...)
		pipe.Publish(ctx, liveChannel, strings.Join(ids, ","))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("zápis %s: %w", liveHashKey, err)
	}

	s.written = true
	s.generation = snap.Generation
	s.version = snap.Version
	return nil
}

// pendingViews určí, co je potřeba zapsat. Při prvním zápisu nebo po resetu
// (jiná generace) se hash nejdřív smaže a zapíše se celý snapshot, jinak jen
// položky s revizí novější než poslední zapsaná verze.
func pendingViews(snap *Snapshot, written bool, generation, version uint64) (bool, []BinView) {
	reset := !written || snap.Generation != generation
	if reset {
		version = 0
	}

	var views []BinView
	for _, v := range snap.bins {
		if v.Revision > version {
			views = append(views, v)
		}
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return reset, views
}
