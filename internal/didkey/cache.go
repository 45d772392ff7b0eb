package didkey

import (
	"sync"
	"time"
)

const (
	DefaultTTL     = 60 * time.Second
	DefaultMaxSize = 1000
)

type cacheEntry struct {
	doc       *Document
	expiresAt time.Time
}

// Resolver resolves did:key identifiers with a TTL + max-size cache.
// Successful resolutions are cached; failed resolutions are not, so a
// transient bad actor can't poison the cache against a legitimate issuer.
type Resolver struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	order   []string // insertion order, for size-bound eviction
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

func NewResolver(ttl time.Duration, maxSize int) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Resolver{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

func (r *Resolver) Resolve(did string) (*Document, error) {
	r.mu.Lock()
	if e, ok := r.entries[did]; ok {
		if r.now().Before(e.expiresAt) {
			r.mu.Unlock()
			return e.doc, nil
		}
		delete(r.entries, did)
	}
	r.mu.Unlock()

	doc, err := Parse(did)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) >= r.maxSize {
		r.evictOldestLocked()
	}
	r.entries[did] = cacheEntry{doc: doc, expiresAt: r.now().Add(r.ttl)}
	r.order = append(r.order, did)
	return doc, nil
}

// evictOldestLocked drops the earliest-inserted entry still present.
func (r *Resolver) evictOldestLocked() {
	for len(r.order) > 0 {
		oldest := r.order[0]
		r.order = r.order[1:]
		if _, ok := r.entries[oldest]; ok {
			delete(r.entries, oldest)
			return
		}
	}
}

func (r *Resolver) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
