package filter

import (
	"context"

	"github.com/haukened/rr-adblock/internal/adblock/domain"
)

// Gateway is the filtering engine the controller delegates to. The controller
// never matches rules itself.
type Gateway interface {
	// Initialize loads the engine with opts. A nil opts means no options were supplied.
	// false without an error means the engine declined to initialize.
	Initialize(ctx context.Context, opts *domain.InitOptions) (bool, error)
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
	// FilterRequest reports whether url should be blocked.
	FilterRequest(ctx context.Context, url string) (bool, error)
	// IsEnabled returns the engine's live enabled flag.
	IsEnabled(ctx context.Context) (bool, error)
	UpdateFilters(ctx context.Context) error
}

// ConfigReader is an optional Gateway capability exposing the engine configuration.
type ConfigReader interface {
	GetConfig(ctx context.Context) (domain.FilterConfiguration, error)
}

// ConfigWriter is an optional Gateway capability accepting partial configuration updates.
type ConfigWriter interface {
	SetConfig(ctx context.Context, patch domain.FilterConfigPatch) error
}

// RequestChecker is the read side of the controller used by the content-view
// defense layer.
type RequestChecker interface {
	IsInitialized() bool
	IsEnabledCached() bool
	FilterRequestDetailed(ctx context.Context, url string) domain.FilterDecision
}
