package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iyhunko/product-catalog/internal/gate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStatsStore_Integration(t *testing.T) {
	testRedis := SetupTestRedis(t)
	defer testRedis.Cleanup(t)

	ctx := context.Background()
	stats := gate.NewRedisStatsStore(testRedis.Client,
		gate.WithStatsPrefix("test:gate"),
		gate.WithStatsTTL(time.Hour),
		gate.WithStatsTrackKeys(true),
	)
	g := gate.New(gate.Options{Capacity: 1, RefillRate: 1, Interval: time.Hour, Stats: stats})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) Firefox/121.0")
		req.Header.Set("Accept", "application/json")
		_, err := g.Protect(ctx, req, "198.51.100.4")
		require.NoError(t, err)
	}

	total, err := testRedis.Client.HGetAll(ctx, stats.TotalKey()).Result()
	require.NoError(t, err)
	assert.Equal(t, "1", total["allow"])
	assert.Equal(t, "1", total["deny"])

	reasons, err := testRedis.Client.HGetAll(ctx, "test:gate:reason").Result()
	require.NoError(t, err)
	assert.Equal(t, "1", reasons["RATE_LIMIT"])

	perKey, err := testRedis.Client.HGetAll(ctx, "test:gate:key:198.51.100.4").Result()
	require.NoError(t, err)
	assert.Equal(t, "1", perKey["deny"])

	ttl, err := testRedis.Client.TTL(ctx, "test:gate:key:198.51.100.4").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
