package bloom

import (
	bitsbloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/haukened/rr-adblock/internal/adblock/repos/rules"
)

// factory builds one pre-filter per rule snapshot.
type factory struct {
	sizer rules.BloomSizer
}

// NewFactory returns the factory the repository uses on every UpdateAll.
func NewFactory() rules.BloomFactory { return factory{sizer: NewSizer()} }

// New returns an empty pre-filter sized for capacity rule names at fpRate.
// A false positive only costs one store lookup.
func (f factory) New(capacity uint64, fpRate float64) rules.BloomFilter {
	bits, hashes := f.sizer.Size(capacity, fpRate)
	return &filter{bf: bitsbloom.New(uint(bits), uint(hashes))}
}
