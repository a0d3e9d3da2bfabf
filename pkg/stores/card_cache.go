package stores

// CardCache holds reconstructed model-card documents keyed by card id.
// Entries expire after a fixed time-to-live and the cache never holds more
// than its configured number of entries; when full, the entry closest to
// expiry is evicted. Callers invalidate a card with Delete after writing it.
//
// Readers that fill the cache from the store take a Generation before the
// read and store with SetIfCurrent, so a document read before a concurrent
// Delete is never cached after it.

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/theapemachine/mcgraph/pkg/types"
)

type CardCache interface {
	Get(id string) (types.Document, bool)
	Set(id string, doc types.Document)
	Generation() uint64
	SetIfCurrent(id string, doc types.Document, generation uint64) bool
	Delete(id string)
	Cleanup()
}

// cardEntry wraps the document with its expiration time
type cardEntry struct {
	doc       types.Document
	expiresAt time.Time
}

// InMemoryCardCache is the default implementation.
type InMemoryCardCache struct {
	mu         sync.RWMutex
	data       map[string]*cardEntry
	expiration time.Duration
	maxEntries int
	generation uint64
	now        func() time.Time
}

/*
NewInMemoryCardCache creates a cache and starts a cleanup goroutine that
runs until ctx is done.
*/
func NewInMemoryCardCache(ctx context.Context, ttl time.Duration, maxEntries int) *InMemoryCardCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	if maxEntries <= 0 {
		maxEntries = 1024
	}

	cache := &InMemoryCardCache{
		data:       make(map[string]*cardEntry),
		expiration: ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}

	go cache.cleanupExpired(ctx)

	return cache
}

func (cache *InMemoryCardCache) Get(id string) (types.Document, bool) {
	cache.mu.RLock()
	entry, ok := cache.data[id]
	cache.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if cache.now().After(entry.expiresAt) {
		cache.dropExpired(id)
		return nil, false
	}

	return entry.doc.Clone(), true
}

/*
dropExpired deletes id only if the entry under the write lock is still
expired; a Set may have replaced it since the read.
*/
func (cache *InMemoryCardCache) dropExpired(id string) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	if entry, ok := cache.data[id]; ok && cache.now().After(entry.expiresAt) {
		delete(cache.data, id)
	}
}

func (cache *InMemoryCardCache) Set(id string, doc types.Document) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	cache.setLocked(id, doc)
}

// Generation changes on every Delete.
func (cache *InMemoryCardCache) Generation() uint64 {
	cache.mu.RLock()
	defer cache.mu.RUnlock()
	return cache.generation
}

/*
SetIfCurrent stores doc only when no Delete happened since generation was
taken. It reports whether the document was stored.
*/
func (cache *InMemoryCardCache) SetIfCurrent(id string, doc types.Document, generation uint64) bool {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	if cache.generation != generation {
		return false
	}

	cache.setLocked(id, doc)
	return true
}

func (cache *InMemoryCardCache) setLocked(id string, doc types.Document) {
	if _, ok := cache.data[id]; !ok && len(cache.data) >= cache.maxEntries {
		cache.evictLocked()
	}

	cache.data[id] = &cardEntry{
		doc:       doc.Clone(),
		expiresAt: cache.now().Add(cache.expiration),
	}
}

func (cache *InMemoryCardCache) Delete(id string) {
	cache.mu.Lock()
	delete(cache.data, id)
	cache.generation++
	cache.mu.Unlock()
}

func (cache *InMemoryCardCache) Cleanup() {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	now := cache.now()

	for id, entry := range cache.data {
		if now.After(entry.expiresAt) {
			delete(cache.data, id)
		}
	}
}

// Len reports the number of entries, expired ones included.
func (cache *InMemoryCardCache) Len() int {
	cache.mu.RLock()
	defer cache.mu.RUnlock()
	return len(cache.data)
}

func (cache *InMemoryCardCache) evictLocked() {
	var (
		oldest string
		expiry time.Time
	)

	for id, entry := range cache.data {
		if oldest == "" || entry.expiresAt.Before(expiry) {
			oldest, expiry = id, entry.expiresAt
		}
	}

	if oldest != "" {
		delete(cache.data, oldest)
		log.Debug("card cache full, evicted entry", "id", oldest)
	}
}

// cleanupExpired periodically drops expired entries
func (cache *InMemoryCardCache) cleanupExpired(ctx context.Context) {
	ticker := time.NewTicker(cache.expiration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cache.Cleanup()
		}
	}
}
