package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T, expiry time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisWithClient(client, "memberportal:", expiry), server
}

func TestRedisRoundTripKeepsFetchedAt(t *testing.T) {
	ctx := context.Background()
	store, server := newTestRedis(t, 10*time.Minute)

	fetchedAt := time.Date(2025, 11, 27, 12, 0, 0, 0, time.UTC)
	if errSet := store.Set(ctx, ProfileKey("U1"), Entry{Value: []byte(`{"points":10}`), FetchedAt: fetchedAt}); errSet != nil {
		t.Fatalf("set: %v", errSet)
	}
	if !server.Exists("memberportal:profile:U1") {
		t.Fatalf("expected prefixed key in redis")
	}

	entry, errGet := store.Get(ctx, ProfileKey("U1"))
	if errGet != nil {
		t.Fatalf("get: %v", errGet)
	}
	if string(entry.Value) != `{"points":10}` || !entry.FetchedAt.Equal(fetchedAt) {
		t.Fatalf("entry = %+v", entry)
	}
}

func TestRedisKeyExpires(t *testing.T) {
	ctx := context.Background()
	store, server := newTestRedis(t, time.Minute)

	if errSet := store.Set(ctx, "k", Entry{Value: []byte(`1`), FetchedAt: time.Now()}); errSet != nil {
		t.Fatalf("set: %v", errSet)
	}
	server.FastForward(2 * time.Minute)

	if _, errGet := store.Get(ctx, "k"); !errors.Is(errGet, ErrMiss) {
		t.Fatalf("Get after expiry = %v, want ErrMiss", errGet)
	}
}

func TestRedisDeleteAndLoad(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedis(t, time.Hour)
	policy := Policy{TTL: 5 * time.Minute}

	calls := 0
	fetch := func(context.Context) (profile, error) {
		calls++
		return profile{Name: "Jane"}, nil
	}
	if _, errLoad := Load(ctx, store, policy, "p", false, fetch, nil); errLoad != nil {
		t.Fatalf("load: %v", errLoad)
	}
	cached, errLoad := Load(ctx, store, policy, "p", false, fetch, nil)
	if errLoad != nil || !cached.Cached {
		t.Fatalf("expected cached result, got %+v err=%v", cached, errLoad)
	}

	if errDelete := store.Delete(ctx, "p"); errDelete != nil {
		t.Fatalf("delete: %v", errDelete)
	}
	if _, errLoad := Load(ctx, store, policy, "p", false, fetch, nil); errLoad != nil {
		t.Fatalf("load after delete: %v", errLoad)
	}
	if calls != 2 {
		t.Fatalf("fetch calls = %d, want 2", calls)
	}
}

func TestRedisServerFailureFallsBackToFetch(t *testing.T) {
	ctx := context.Background()
	store, server := newTestRedis(t, time.Hour)
	server.Close()

	var reported []error
	got, errLoad := Load(ctx, store, Policy{TTL: time.Minute}, "p", false, func(context.Context) (profile, error) {
		return profile{Name: "Jane"}, nil
	}, func(err error) { reported = append(reported, err) })
	if errLoad != nil {
		t.Fatalf("Load should succeed when redis is down: %v", errLoad)
	}
	if got.Value.Name != "Jane" {
		t.Fatalf("value = %+v", got.Value)
	}
	if len(reported) == 0 {
		t.Fatalf("redis failures should be reported")
	}
}
