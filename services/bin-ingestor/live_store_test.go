package main

import (
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(views []BinView) []string {
	out := make([]string, 0, len(views))
	for _, v := range views {
		out = append(out, v.ID)
	}
	return out
}

func TestPendingViewsFirstWriteClearsAndWritesAll(t *testing.T) {
	b := NewBatcher(DefaultChangeFilter(), discardLogger(), nil)
	b.Enqueue(reading("B2", 1, 1))
	b.Enqueue(reading("B1", 1, 1))
	b.Flush()

	reset, views := pendingViews(b.Snapshot(), false, 0, 0)
	assert.True(t, reset)
	assert.Equal(t, []string{"B1", "B2"}, ids(views))
}

func TestPendingViewsWritesOnlyNewerRevisions(t *testing.T) {
	b := NewBatcher(DefaultChangeFilter(), discardLogger(), nil)
	b.Enqueue(reading("B1", 1, 1))
	b.Enqueue(reading("B2", 1, 1))
	b.Flush()
	written := b.Snapshot()

	b.Enqueue(reading("B2", 50, 1))
	b.Flush()

	reset, views := pendingViews(b.Snapshot(), true, written.Generation, written.Version)
	assert.False(t, reset)
	assert.Equal(t, []string{"B2"}, ids(views))
}

func TestPendingViewsCatchesUpSkippedSnapshots(t *testing.T) {
	b := NewBatcher(DefaultChangeFilter(), discardLogger(), nil)
	b.Enqueue(reading("B1", 1, 1))
	b.Flush()
	written := b.Snapshot()

	// Dva flushe, odběratel uvidí jen ten poslední.
	b.Enqueue(reading("B2", 1, 1))
	b.Flush()
	b.Enqueue(reading("B3", 1, 1))
	b.Flush()

	_, views := pendingViews(b.Snapshot(), true, written.Generation, written.Version)
	assert.Equal(t, []string{"B2", "B3"}, ids(views))
}

func TestPendingViewsAfterReset(t *testing.T) {
	b := NewBatcher(DefaultChangeFilter(), discardLogger(), nil)
	b.Enqueue(reading("B1", 1, 1))
	b.Flush()
	written := b.Snapshot()

	b.Reset()
	reset, views := pendingViews(b.Snapshot(), true, written.Generation, written.Version)
	assert.True(t, reset)
	assert.Empty(t, views)

	b.Enqueue(reading("B1", 1, 1))
	b.Flush()
	reset, views = pendingViews(b.Snapshot(), true, written.Generation, written.Version)
	assert.True(t, reset)
	assert.Equal(t, []string{"B1"}, ids(views))
}

func TestPendingViewsNothingNew(t *testing.T) {
	b := NewBatcher(DefaultChangeFilter(), discardLogger(), nil)
	b.Enqueue(reading("B1", 1, 1))
	b.Flush()
	snap := b.Snapshot()

	reset, views := pendingViews(snap, true, snap.Generation, snap.Version)
	assert.False(t, reset)
	assert.Empty(t, views)
}

func newTestLiveStore(t *testing.T) (*LiveStore, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewLiveStore(rdb, discardLogger()), mr, rdb
}

func hashFields(t *testing.T, mr *miniredis.Miniredis) []string {
	t.Helper()
	if !mr.Exists(liveHashKey) {
		return nil
	}
	keys, err := mr.HKeys(liveHashKey)
	require.NoError(t, err)
	sort.Strings(keys)
	return keys
}

func TestLiveStoreFirstWriteReplacesHash(t *testing.T) {
	store, mr, rdb := newTestLiveStore(t)
	ctx := context.Background()
	mr.HSet(liveHashKey, "stale", "{}")

	sub := rdb.Subscribe(ctx, liveChannel)
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	b := NewBatcher(DefaultChangeFilter(), discardLogger(), nil)
	b.Enqueue(reading("B2", 5, 5))
	b.Enqueue(reading("B1", 10, 20))
	require.True(t, b.Flush())
	require.NoError(t, store.Write(ctx, b.Snapshot()))

	assert.Equal(t, []string{"B1", "B2"}, hashFields(t, mr))
	var b1 BinView
	require.NoError(t, json.Unmarshal([]byte(mr.HGet(liveHashKey, "B1")), &b1))
	assert.Equal(t, 20.0, b1.Fullness)
	assert.Equal(t, "loc-B1", b1.LocationName)

	msgCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(msgCtx)
	require.NoError(t, err)
	assert.Equal(t, "B1,B2", msg.Payload)
}

func TestLiveStoreWritesOnlyChangedBins(t *testing.T) {
	store, mr, _ := newTestLiveStore(t)
	ctx := context.Background()

	b := NewBatcher(DefaultChangeFilter(), discardLogger(), nil)
	b.Enqueue(reading("B1", 10, 20))
	b.Enqueue(reading("B2", 5, 5))
	require.True(t, b.Flush())
	require.NoError(t, store.Write(ctx, b.Snapshot()))

	// Položku mimo změnu přepíšeme ručně: delta zápis se jí nesmí dotknout.
	mr.HSet(liveHashKey, "B1", "marker")

	b.Enqueue(reading("B2", 50, 5))
	require.True(t, b.Flush())
	require.NoError(t, store.Write(ctx, b.Snapshot()))

	assert.Equal(t, "marker", mr.HGet(liveHashKey, "B1"))
	var b2 BinView
	require.NoError(t, json.Unmarshal([]byte(mr.HGet(liveHashKey, "B2")), &b2))
	assert.Equal(t, 50.0, b2.Weight)

	// Stejný snapshot podruhé: nic nového, nic se nezapíše.
	mr.HSet(liveHashKey, "B2", "marker")
	require.NoError(t, store.Write(ctx, b.Snapshot()))
	assert.Equal(t, "marker", mr.HGet(liveHashKey, "B2"))
}

func TestLiveStoreResetDeletesHash(t *testing.T) {
	store, mr, _ := newTestLiveStore(t)
	ctx := context.Background()

	b := NewBatcher(DefaultChangeFilter(), discardLogger(), nil)
	b.Enqueue(reading("B1", 10, 20))
	b.Enqueue(reading("B2", 5, 5))
	require.True(t, b.Flush())
	require.NoError(t, store.Write(ctx, b.Snapshot()))

	b.Reset()
	require.NoError(t, store.Write(ctx, b.Snapshot()))
	assert.False(t, mr.Exists(liveHashKey), "reset without new readings leaves no bins")

	b.Enqueue(reading("B3", 1, 1))
	require.True(t, b.Flush())
	require.NoError(t, store.Write(ctx, b.Snapshot()))
	assert.Equal(t, []string{"B3"}, hashFields(t, mr))
}

func TestLiveStoreRetriesAfterFailedWrite(t *testing.T) {
	store, mr, rdb := newTestLiveStore(t)
	ctx := context.Background()
	require.NoError(t, rdb.Ping(ctx).Err())

	b := NewBatcher(DefaultChangeFilter(), discardLogger(), nil)
	b.Enqueue(reading("B1", 10, 20))
	require.True(t, b.Flush())

	mr.SetError("ERR injected failure")
	require.Error(t, store.Write(ctx, b.Snapshot()))
	mr.SetError("")

	b.Enqueue(reading("B2", 1, 1))
	require.True(t, b.Flush())
	require.NoError(t, store.Write(ctx, b.Snapshot()))
	assert.Equal(t, []string{"B1", "B2"}, hashFields(t, mr))
}

func TestLiveStoreRunFollowsSubscription(t *testing.T) {
	store, mr, _ := newTestLiveStore(t)
	b := NewBatcher(DefaultChangeFilter(), discardLogger(), nil)
	updates, unsubscribe := b.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.Run(ctx, updates)
		close(done)
	}()

	b.Enqueue(reading("B1", 10, 20))
	require.True(t, b.Flush())
	assert.Eventually(t, func() bool {
		return mr.Exists(liveHashKey) && mr.HGet(liveHashKey, "B1") != ""
	}, 2*time.Second, 10*time.Millisecond)

	unsubscribe()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after the channel was closed")
	}
	cancel()
}
