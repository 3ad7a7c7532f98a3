package main

import (
	"context"
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLiveReader(t *testing.T) (*LiveReader, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewLiveReader(rdb, discardLogger()), mr
}

func TestLiveBinsReadsHash(t *testing.T) {
	reader, mr := newTestLiveReader(t)
	mr.HSet(liveHashKey, "B2", `{"id":"B2","fullness":40,"weight":8,"revision":3}`)
	mr.HSet(liveHashKey, "B1", `{"id":"B1","location_name":"Park","fullness":10,"revision":1}`)
	mr.HSet(liveHashKey, "B3", `not json`)

	bins, err := reader.LiveBins(context.Background())
	require.NoError(t, err)

	require.Len(t, bins, 2)
	assert.Equal(t, "B1", bins[0].ID)
	assert.Equal(t, "Park", bins[0].LocationName)
	assert.Equal(t, "B2", bins[1].ID)
	assert.Equal(t, uint64(3), bins[1].Revision)
}

func TestLiveBinsMissingHash(t *testing.T) {
	reader, _ := newTestLiveReader(t)

	bins, err := reader.LiveBins(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, bins)
	assert.Empty(t, bins)
}

func TestLiveBinsValkeyError(t *testing.T) {
	reader, mr := newTestLiveReader(t)
	mr.Close()

	_, err := reader.LiveBins(context.Background())
	assert.Error(t, err)
}

func TestLiveBinsEndpointOverValkey(t *testing.T) {
	reader, mr := newTestLiveReader(t)
	mr.HSet(liveHashKey, "B1", `{"id":"B1","fullness":55}`)

	rec := serve(newTestMux(newTestRefresher(&fakeSource{}), reader), http.MethodGet, "/api/bins/live")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fullness":55`)
}
