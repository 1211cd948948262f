package domain

import (
	"fmt"
	"strings"
)

// PerformanceMode selects which rule classes the engine evaluates.
//
// minimal    - host rules only
// balanced   - host rules plus path and regex rules
// aggressive - everything, including bare keyword wildcards
type PerformanceMode string

const (
	PerformanceBalanced   PerformanceMode = "balanced"
	PerformanceAggressive PerformanceMode = "aggressive"
	PerformanceMinimal    PerformanceMode = "minimal"
)

// ParsePerformanceMode converts a string into a PerformanceMode (case-insensitive).
func ParsePerformanceMode(s string) (PerformanceMode, error) {
	switch m := PerformanceMode(strings.ToLower(strings.TrimSpace(s))); m {
	case PerformanceBalanced, PerformanceAggressive, PerformanceMinimal:
		return m, nil
	default:
		return "", fmt.Errorf("unsupported performance mode: %q", s)
	}
}

// OrDefault returns m, or balanced when m is empty.
func (m PerformanceMode) OrDefault() PerformanceMode {
	if m == "" {
		return PerformanceBalanced
	}
	return m
}

// InitOptions is passed verbatim to the gateway on initialization.
// A nil *InitOptions means no options were supplied.
type InitOptions struct {
	EnableLogging     bool            `json:"enableLogging,omitempty"`
	PerformanceMode   PerformanceMode `json:"performanceMode,omitempty"`
	CustomFilterLists []string        `json:"customFilterLists,omitempty"`
}

// Clone returns a copy of o that shares no slices with it; nil stays nil.
func (o *InitOptions) Clone() *InitOptions {
	if o == nil {
		return nil
	}
	c := *o
	c.CustomFilterLists = append([]string(nil), o.CustomFilterLists...)
	return &c
}
