package rivet

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rivetorm/rivet/schema"
	"github.com/vmihailenco/msgpack/v5"
)

// Cache is the interface for caching query results.
// Users should implement this interface with their preferred caching
// solution (e.g., Redis, Memcached, in-memory).
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all values with the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// MemoryCache is a process-local Cache backed by a map. Suitable for tests
// and single-process deployments.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryCache returns an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry)}
}

// Get retrieves a value. Expired entries read as missing.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		return nil, nil
	}
	return e.value, nil
}

// Set stores a value. A zero ttl never expires.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{value: value, expires: expires}
	return nil
}

// Delete removes a key.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// DeletePrefix removes all keys with the given prefix.
func (c *MemoryCache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	return nil
}

// Clear removes everything.
func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]memoryEntry)
	return nil
}

var _ Cache = (*MemoryCache)(nil)

// collectionPayload is the wire form of a cached result set.
type collectionPayload struct {
	Type    string          `msgpack:"type"`
	Records []recordPayload `msgpack:"records"`
}

// encodeCollection encodes a result set for caching. Loaded relations are
// not carried; preloads re-resolve on decode.
func encodeCollection(c *Collection) ([]byte, error) {
	p := collectionPayload{}
	for _, r := range c.Records() {
		if p.Type == "" {
			p.Type = r.Type().Name
		}
		p.Records = append(p.Records, recordPayload{
			Type:      r.Type().Name,
			Attrs:     r.attrs,
			Extras:    r.extras,
			Persisted: r.persisted,
		})
	}
	return msgpack.Marshal(p)
}

// decodeCollection decodes a cached result set against the registry.
func decodeCollection(reg *schema.Registry, data []byte) (*Collection, error) {
	var p collectionPayload
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	coll := NewCollection()
	for _, rp := range p.Records {
		t, err := reg.Type(rp.Type)
		if err != nil {
			return nil, err
		}
		rec := NewRecord(t)
		if err := rec.applyPayload(rp); err != nil {
			return nil, err
		}
		coll.append(rec)
	}
	return coll, nil
}
