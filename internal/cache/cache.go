// Package cache stores fetched member data keyed explicitly, with the fetch time
// kept next to the value so callers decide freshness themselves.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMiss is returned by Get when no entry exists for the key.
var ErrMiss = errors.New("cache: miss")

// Entry is a cached value and the moment it was fetched from its source.
type Entry struct {
	Value     []byte    `json:"value"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Cache is the storage contract shared by the memory and redis backends.
type Cache interface {
	Get(ctx context.Context, key string) (Entry, error)
	Set(ctx context.Context, key string, entry Entry) error
	Delete(ctx context.Context, key string) error
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// Policy decides whether an entry can still be served.
type Policy struct {
	TTL   time.Duration
	Clock Clock
}

func (p Policy) now() time.Time {
	if p.Clock == nil {
		return time.Now()
	}
	return p.Clock.Now()
}

// Fresh reports whether entry is younger than the TTL. A zero TTL disables caching.
func (p Policy) Fresh(entry Entry) bool {
	if p.TTL <= 0 || entry.FetchedAt.IsZero() {
		return false
	}
	return p.now().Sub(entry.FetchedAt) < p.TTL
}

// Result carries a loaded value and whether it came from the cache.
type Result[T any] struct {
	Value     T
	FetchedAt time.Time
	Cached    bool
}

// Load returns the cached value for key when fresh, otherwise calls fetch and stores its result.
// force skips the cache read. Cache read and write failures fall back to fetch and are reported via onError.
func Load[T any](ctx context.Context, c Cache, p Policy, key string, force bool, fetch func(context.Context) (T, error), onError func(error)) (Result[T], error) {
	var zero Result[T]
	if !force {
		entry, errGet := c.Get(ctx, key)
		switch {
		case errGet == nil && p.Fresh(entry):
			var value T
			if errDecode := json.Unmarshal(entry.Value, &value); errDecode == nil {
				return Result[T]{Value: value, FetchedAt: entry.FetchedAt, Cached: true}, nil
			} else if onError != nil {
				onError(fmt.Errorf("cache: decode %s: %w", key, errDecode))
			}
		case errGet != nil && !errors.Is(errGet, ErrMiss) && onError != nil:
			onError(errGet)
		}
	}

	value, errFetch := fetch(ctx)
	if errFetch != nil {
		return zero, errFetch
	}
	fetchedAt := p.now()
	raw, errEncode := json.Marshal(value)
	if errEncode != nil {
		if onError != nil {
			onError(fmt.Errorf("cache: encode %s: %w", key, errEncode))
		}
		return Result[T]{Value: value, FetchedAt: fetchedAt}, nil
	}
	if errSet := c.Set(ctx, key, Entry{Value: raw, FetchedAt: fetchedAt}); errSet != nil && onError != nil {
		onError(errSet)
	}
	return Result[T]{Value: value, FetchedAt: fetchedAt}, nil
}

// ProfileKey is the cache key for a member profile.
func ProfileKey(lineUserID string) string {
	return "profile:" + lineUserID
}
