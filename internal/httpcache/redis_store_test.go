package httpcache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisStoreRoundTripsValidators(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := NewRedisStore(rdb, "httpcache:")
	ctx := context.Background()

	if v := store.Get(ctx, "feed-1"); v.HasValidators() {
		t.Fatalf("expected no validators for an unseen key")
	}

	store.Set(ctx, "feed-1", Validator{ETag: `"xyz"`, LastModified: "Wed, 01 Jan 2026 00:00:00 GMT"})

	got := store.Get(ctx, "feed-1")
	if got.ETag != `"xyz"` || got.LastModified != "Wed, 01 Jan 2026 00:00:00 GMT" {
		t.Fatalf("unexpected round-tripped validator: %+v", got)
	}
}

func TestRedisStoreFailsOpenOnError(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()

	store := NewRedisStore(rdb, "httpcache:")
	v := store.Get(context.Background(), "feed-1")
	if v.HasValidators() {
		t.Fatalf("expected a zero-value validator when redis is unreachable (fail open)")
	}
}
