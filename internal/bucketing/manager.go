package bucketing

import (
	"hash"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"

	"review-auth/internal/config"
)

// Manager assigns stable shard buckets. The revocation index is split across
// buckets so the hourly sweep never scans one hot sorted set; security
// events are bucketed for partitioned analytics storage.
type Manager struct {
	revocationBuckets int
	eventBuckets      int
	hasherPool        sync.Pool
}

func NewManager(cfg *config.Config) *Manager {
	m := &Manager{
		revocationBuckets: cfg.Bucketing.RevocationBuckets,
		eventBuckets:      cfg.Bucketing.EventBuckets,
	}
	if m.revocationBuckets <= 0 {
		m.revocationBuckets = 16
	}
	if m.eventBuckets <= 0 {
		m.eventBuckets = 32
	}

	// Pool hashers to avoid per-call allocation on the request path.
	m.hasherPool = sync.Pool{
		New: func() interface{} {
			return murmur3.New64()
		},
	}
	return m
}

// RevocationBuckets returns the number of revocation index shards.
func (m *Manager) RevocationBuckets() int {
	return m.revocationBuckets
}

// RevocationBucket returns the index shard for a token id (0..n-1).
func (m *Manager) RevocationBucket(tokenID string) int {
	return m.bucket(tokenID, m.revocationBuckets)
}

// EventBucket returns the stable bucket for an event key (0..n-1).
func (m *Manager) EventBucket(identifier string) int {
	return m.bucket(identifier, m.eventBuckets)
}

// DateBucket returns the UTC date partition for events.
func (m *Manager) DateBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func (m *Manager) bucket(id string, n int) int {
	h := m.hasherPool.Get().(hash.Hash64)
	defer func() {
		h.Reset()
		m.hasherPool.Put(h)
	}()

	_, _ = h.Write([]byte(id))
	return int(h.Sum64() % uint64(n))
}
