package rules

import (
	"strings"
	"sync"

	"github.com/haukened/rr-adblock/internal/adblock/common/urlutil"
	"github.com/haukened/rr-adblock/internal/adblock/domain"
)

// repository implements the Repository interface by composing a Store,
// a Bloom filter (via factory), and a DecisionCache. It applies a cache → bloom → store pipeline
// on reads and performs atomic snapshot updates on writes.
type repository struct {
	mu         sync.RWMutex
	store      Store
	cache      DecisionCache
	bloom      BloomFilter
	factory    BloomFactory
	fpRate     float64
	lastUpdate int64
}

// NewRepository constructs a Repository.
// fpRate is the target false-positive rate for the Bloom filter when rebuilding.
func NewRepository(store Store, cache DecisionCache, factory BloomFactory, fpRate float64) Repository {
	return &repository{store: store, cache: cache, factory: factory, fpRate: fpRate}
}

// Decide returns a HostDecision for the provided host name.
// Policy: on internal errors, prefer allow (no match).
func (r *repository) Decide(name string) domain.HostDecision {
	cn := urlutil.CanonicalHost(name)
	if cn == "" {
		return domain.EmptyDecision()
	}
	// 1) checkCache
	if d, ok := r.checkCache(cn); ok {
		return d
	}
	// 2) checkBloom: early no-match if definitively negative
	if !r.checkBloom(cn) {
		return domain.EmptyDecision()
	}
	// 3) checkStore
	dec, err := r.checkStore(cn)
	if err != nil {
		return domain.EmptyDecision()
	}
	// 4) updateCache
	r.updateCache(cn, dec)
	return dec
}

// UpdateAll performs an atomic snapshot update across store, bloom, and cache.
func (r *repository) UpdateAll(rules []domain.HostRule, version uint64, updatedUnix int64) error {
	// 1) Rebuild the persistent store first.
	if err := r.store.RebuildAll(rules, version, updatedUnix); err != nil {
		return err
	}

	// 2) Build a fresh Bloom filter sized for the dataset.
	var n uint64
	for _, ru := range rules {
		if ru.Kind == domain.HostRuleExact || ru.Kind == domain.HostRuleSuffix {
			n++
		}
	}
	bf := r.factory.New(n, r.fpRate)
	for _, ru := range rules {
		switch ru.Kind {
		case domain.HostRuleExact:
			bf.Add([]byte(ru.Name))
		case domain.HostRuleSuffix:
			bf.Add([]byte(reverseString(ru.Name)))
		}
	}

	// 3) Swap bloom and purge decision cache under lock.
	r.mu.Lock()
	r.bloom = bf
	r.cache.Purge()
	r.lastUpdate = updatedUnix
	r.mu.Unlock()
	return nil
}

// RepoStats returns cache counters, store metadata, and the last update time.
func (r *repository) RepoStats() RepoStats {
	r.mu.RLock()
	cs := r.cache.Stats()
	last := r.lastUpdate
	r.mu.RUnlock()
	return RepoStats{Cache: cs, Store: r.store.Stats(), LastUpdate: last}
}

// reverseString reverses the string runes. Must match the store's reversal logic
// used for suffix anchors to keep Bloom keys aligned with Bolt keys.
func reverseString(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

// checkBloom returns true if we should consult the store (maybe-positive),
// or false if no rule can possibly match. Without a loaded filter it returns
// true so the store stays authoritative.
func (r *repository) checkBloom(cn string) bool {
	r.mu.RLock()
	bf := r.bloom
	r.mu.RUnlock()
	if bf == nil {
		return true
	}
	if bf.MightContain([]byte(cn)) {
		return true
	}
	// test reversed anchors for suffix candidates, most-specific → apex
	a := cn
	for {
		if bf.MightContain([]byte(reverseString(a))) {
			return true
		}
		i := strings.IndexByte(a, '.')
		if i < 0 {
			break
		}
		a = a[i+1:]
		if a == "" {
			break
		}
	}
	return false
}

// checkCache returns a cached decision when present.
func (r *repository) checkCache(cn string) (domain.HostDecision, bool) {
	r.mu.RLock()
	d, ok := r.cache.Get(cn)
	r.mu.RUnlock()
	return d, ok
}

// checkStore consults the authoritative store. Exceptions are looked up first
// and win over block rules.
func (r *repository) checkStore(cn string) (domain.HostDecision, error) {
	for _, action := range []domain.RuleAction{domain.ActionAllow, domain.ActionBlock} {
		rule, ok, err := r.store.GetFirstMatch(cn, action)
		if err != nil {
			return domain.EmptyDecision(), err
		}
		if ok {
			return domain.HostDecision{
				Matched:     true,
				Action:      rule.Action,
				MatchedRule: rule.Name,
				Source:      rule.Source,
				Kind:        rule.Kind,
			}, nil
		}
	}
	return domain.EmptyDecision(), nil
}

// updateCache writes the final decision.
func (r *repository) updateCache(cn string, dec domain.HostDecision) {
	r.mu.Lock()
	r.cache.Put(cn, dec)
	r.mu.Unlock()
}
