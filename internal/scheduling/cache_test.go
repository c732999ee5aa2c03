package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*BusyCache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewBusyCache(client, time.Minute, nil), srv
}

func TestBusyCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	from := time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 14)
	busy := []BusyInterval{{Start: from.Add(10 * time.Hour), End: from.Add(11 * time.Hour)}}

	if _, ok := cache.Get(ctx, "evtype-101", from, to); ok {
		t.Fatal("expected miss before Set")
	}

	cache.Set(ctx, "evtype-101", from, to, busy)

	got, ok := cache.Get(ctx, "evtype-101", from, to)
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if len(got) != 1 || !got[0].Start.Equal(busy[0].Start) {
		t.Errorf("got %+v", got)
	}
}

func TestBusyCacheKeyedByWindow(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	from := time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 14)

	cache.Set(ctx, "evtype-101", from, to, nil)

	if _, ok := cache.Get(ctx, "evtype-101", from.AddDate(0, 0, 1), to); ok {
		t.Error("different window must miss")
	}
	if _, ok := cache.Get(ctx, "evtype-102", from, to); ok {
		t.Error("different event type must miss")
	}
}

func TestBusyCacheExpires(t *testing.T) {
	cache, srv := newTestCache(t)
	ctx := context.Background()
	from := time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 14)

	cache.Set(ctx, "evtype-101", from, to, nil)
	srv.FastForward(2 * time.Minute)

	if _, ok := cache.Get(ctx, "evtype-101", from, to); ok {
		t.Error("expected entry to expire")
	}
}

func TestBusyCacheCorruptEntryIsMiss(t *testing.T) {
	cache, srv := newTestCache(t)
	ctx := context.Background()
	from := time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 14)

	srv.Set(cacheKey("evtype-101", from, to), "{not json")

	if _, ok := cache.Get(ctx, "evtype-101", from, to); ok {
		t.Error("corrupt entry must be treated as a miss")
	}
}

func TestNilBusyCacheIsSafe(t *testing.T) {
	var cache *BusyCache
	ctx := context.Background()

	if _, ok := cache.Get(ctx, "evtype-101", time.Now(), time.Now()); ok {
		t.Error("nil cache must always miss")
	}
	cache.Set(ctx, "evtype-101", time.Now(), time.Now(), nil)

	if NewBusyCache(nil, time.Minute, nil) != nil {
		t.Error("nil client must produce a nil cache")
	}
}
