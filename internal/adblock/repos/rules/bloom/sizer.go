package bloom

import (
	"math"

	"github.com/haukened/rr-adblock/internal/adblock/repos/rules"
)

const (
	// defaultFPRate applies when the configured rate is outside (0, 1).
	defaultFPRate = 0.01
	// maxHashes bounds k for very small rates. Beyond it lookups slow down
	// with almost no gain.
	maxHashes = 32
)

// sizer derives bit count m and hash count k from the number of rule names n
// and the false-positive rate p:
//
//	m = -(n * ln p) / (ln 2)^2
//	k = (m / n) * ln 2
type sizer struct{}

// NewSizer returns the sizer used by NewFactory.
func NewSizer() rules.BloomSizer { return sizer{} }

// Size returns m and k, each at least 1 and k at most maxHashes. An empty
// snapshot is sized as one name.
func (s sizer) Size(n uint64, p float64) (uint64, uint8) {
	if n == 0 {
		n = 1
	}
	if !(p > 0 && p < 1) {
		p = defaultFPRate
	}
	ln2 := math.Ln2
	m := uint64(math.Ceil(-float64(n) * math.Log(p) / (ln2 * ln2)))
	if m == 0 {
		m = 1
	}
	k := math.Round((float64(m) / float64(n)) * ln2)
	k = math.Min(maxHashes, math.Max(1, k))
	return m, uint8(k)
}
