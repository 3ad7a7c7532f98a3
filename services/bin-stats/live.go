package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/redis/go-redis/v9"
)

// liveHashKey musí odpovídat klíči, který plní bin-ingestor.
const liveHashKey = "bins:live"

// LiveReader čte live snapshot z Valkey.
type LiveReader struct {
	redis  *redis.Client
	logger *slog.Logger
}

func NewLiveReader(rdb *redis.Client, logger *slog.Logger) *LiveReader {
	return &LiveReader{redis: rdb, logger: logger}
}

// LiveBins vrací všechny koše z live snapshotu seřazené podle ID.
// Poškozené položky se přeskočí (a zalogují), zbytek se vrátí.
func (l *LiveReader) LiveBins(ctx context.Context) ([]LiveBin, error) {
	entries, err := l.redis.HGetAll(ctx, liveHashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("čtení %s: %w", liveHashKey, err)
	}
	return decodeLiveBins(entries, l.logger), nil
}

func decodeLiveBins(entries map[string]string, logger *slog.Logger) []LiveBin {
	bins := make([]LiveBin, 0, len(entries))
	for id, raw := range entries {
		var b LiveBin
		if err := json.Unmarshal([]byte(raw), &b); err != nil {
			logger.Warn("Poškozená položka live snapshotu", "id", id, "error", err)
			continue
		}
		bins = append(bins, b)
	}
	sort.Slice(bins, func(i, j int) bool { return bins[i].ID < bins[j].ID })
	return bins
}
