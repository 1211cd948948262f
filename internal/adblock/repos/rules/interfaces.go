package rules

import "github.com/haukened/rr-adblock/internal/adblock/domain"

// BloomSizer computes Bloom filter parameters from capacity (n) and target FP rate (p).
// It returns m (number of bits) and k (number of hash functions).
type BloomSizer interface {
	Size(n uint64, p float64) (m uint64, k uint8)
}

// BloomFilter is the minimal interface the repository needs from Bloom filters.
type BloomFilter interface {
	Add(key []byte)
	MightContain(key []byte) bool
}

// BloomFactory builds Bloom filters sized for a dataset.
type BloomFactory interface {
	New(capacity uint64, fpRate float64) BloomFilter
}

// DecisionCache caches host decisions by canonical name with basic metrics.
type DecisionCache interface {
	Get(name string) (domain.HostDecision, bool)
	Put(name string, d domain.HostDecision)
	Len() int
	Purge()
	Stats() CacheStats
}

// Store abstracts the persistent host-rule index.
//   - GetFirstMatch: most specific rule with the given action (exact before suffix)
//   - RebuildAll: atomically replace every rule and the snapshot metadata
//   - Purge: remove every rule and the metadata
type Store interface {
	GetFirstMatch(name string, action domain.RuleAction) (domain.HostRule, bool, error)
	RebuildAll(rules []domain.HostRule, version uint64, updatedUnix int64) error
	Purge() error
	Stats() StoreStats
	Close() error
}

// RepoStats exposes repository-level counters and underlying store stats.
type RepoStats struct {
	Cache      CacheStats
	Store      StoreStats
	LastUpdate int64 // seconds since epoch
}

// Repository is the composition layer that wires cache → bloom → store.
// Decide returns a value-type HostDecision for the canonical name; allow
// rules take precedence over block rules.
// UpdateAll rebuilds the store, refreshes the Bloom filter, and clears the cache.
type Repository interface {
	Decide(name string) domain.HostDecision
	UpdateAll(rules []domain.HostRule, version uint64, updatedUnix int64) error
	RepoStats() RepoStats
}
