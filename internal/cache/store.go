// Package cache holds the derived pricing catalog and location lookups in a
// TTL key-value store. Nothing here is authoritative; every entry can be
// rebuilt from the catalog store or the distance resolver.
package cache

import (
	"context"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Store is a key-value store with per-entry TTL. A zero TTL keeps the entry
// until it is overwritten or deleted.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete reports whether the key existed.
	Delete(ctx context.Context, key string) (bool, error)
	// Keys returns live keys matching a path.Match glob, sorted.
	Keys(ctx context.Context, pattern string) ([]string, error)
}

const slashStandIn = "\x1f"

// MemoryStore is an in-process Store.
type MemoryStore struct {
	items *ttlcache.Cache[string, []byte]
}

func NewMemoryStore() *MemoryStore {
	items := ttlcache.New[string, []byte](
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go items.Start()
	return &MemoryStore{items: items}
}

// Close stops the expiry loop.
func (s *MemoryStore) Close() {
	s.items.Stop()
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	item := s.items.Get(key)
	if item == nil {
		return nil, false, nil
	}
	return item.Value(), true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	s.items.Set(key, value, ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) (bool, error) {
	_, found := s.items.GetAndDelete(key)
	return found, nil
}

// Keys matches with path.Match, except that * and ? also match '/', which
// shows up in addresses ("unit 3/4").
func (s *MemoryStore) Keys(_ context.Context, pattern string) ([]string, error) {
	pattern = strings.ReplaceAll(pattern, "/", slashStandIn)
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, err
	}
	var keys []string
	for _, k := range s.items.Keys() {
		if ok, _ := path.Match(pattern, strings.ReplaceAll(k, "/", slashStandIn)); !ok {
			continue
		}
		if s.items.Get(k) == nil {
			continue // expired, not yet evicted
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// GlobPattern turns admin input into a glob: input with no glob characters
// matches as a substring.
func GlobPattern(pattern string) string {
	if pattern == "" {
		return "*"
	}
	if strings.ContainsAny(pattern, "*?[") {
		return pattern
	}
	return "*" + pattern + "*"
}
