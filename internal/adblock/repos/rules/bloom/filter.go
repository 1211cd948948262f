package bloom

import (
	"sync"

	bitsbloom "github.com/bits-and-blooms/bloom/v3"
)

// filter holds the canonical names of every host rule in a snapshot. A miss
// means no host rule can match, so the repository skips the store lookup.
// Rebuilds add keys while request lookups keep probing, hence the lock.
type filter struct {
	mu sync.RWMutex
	bf *bitsbloom.BloomFilter
}

// Add records a rule name (an exact host or a suffix anchor).
func (f *filter) Add(name []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bf.Add(name)
}

// MightContain reports whether a rule may exist for name. False is definite.
func (f *filter) MightContain(name []byte) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bf.Test(name)
}
