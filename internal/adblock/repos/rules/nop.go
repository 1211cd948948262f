package rules

import "github.com/haukened/rr-adblock/internal/adblock/domain"

// NopRepository never matches. It stands in for the host index before the
// first rule build.
type NopRepository struct{}

func (NopRepository) Decide(string) domain.HostDecision { return domain.EmptyDecision() }

func (NopRepository) UpdateAll([]domain.HostRule, uint64, int64) error { return nil }

func (NopRepository) RepoStats() RepoStats { return RepoStats{} }

var _ Repository = NopRepository{}
