package filter

import (
	"context"
	"fmt"

	"github.com/haukened/rr-adblock/internal/adblock/domain"
)

// CapabilityOutcome is the result of invoking an optional gateway capability.
type CapabilityOutcome int

const (
	// CapabilityUnsupported means the gateway does not implement the capability.
	CapabilityUnsupported CapabilityOutcome = iota
	// CapabilitySucceeded means the capability exists and the call succeeded.
	CapabilitySucceeded
	// CapabilityFailed means the capability exists and the call returned an error.
	CapabilityFailed
)

// String returns a stable string representation of the outcome.
func (o CapabilityOutcome) String() string {
	switch o {
	case CapabilityUnsupported:
		return "unsupported"
	case CapabilitySucceeded:
		return "succeeded"
	case CapabilityFailed:
		return "failed"
	default:
		return fmt.Sprintf("CapabilityOutcome(%d)", o)
	}
}

// Capabilities lists the optional operations a gateway supports.
type Capabilities struct {
	ReadConfig  bool `json:"readConfig"`
	WriteConfig bool `json:"writeConfig"`
}

// CapabilityOf queries gw for its optional capabilities.
func CapabilityOf(gw Gateway) Capabilities {
	_, r := gw.(ConfigReader)
	_, w := gw.(ConfigWriter)
	return Capabilities{ReadConfig: r, WriteConfig: w}
}

// ReadConfig invokes the config-read capability of gw if it has one.
func ReadConfig(ctx context.Context, gw Gateway) (domain.FilterConfiguration, CapabilityOutcome, error) {
	reader, ok := gw.(ConfigReader)
	if !ok {
		return domain.FilterConfiguration{}, CapabilityUnsupported, nil
	}
	cfg, err := reader.GetConfig(ctx)
	if err != nil {
		return domain.FilterConfiguration{}, CapabilityFailed, err
	}
	return cfg, CapabilitySucceeded, nil
}

// WriteConfig invokes the config-write capability of gw if it has one.
func WriteConfig(ctx context.Context, gw Gateway, patch domain.FilterConfigPatch) (CapabilityOutcome, error) {
	writer, ok := gw.(ConfigWriter)
	if !ok {
		return CapabilityUnsupported, nil
	}
	if err := writer.SetConfig(ctx, patch); err != nil {
		return CapabilityFailed, err
	}
	return CapabilitySucceeded, nil
}
