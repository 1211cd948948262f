package domain

import (
	"fmt"
	"strings"
	"time"
)

// HostRuleKind defines how a host rule matches host names.
//
// exact  - matches the host only (name == requested host)
// suffix - matches the host and any subdomain (apex-inclusive suffix), the
// "||host^" form of filter lists
type HostRuleKind uint8

const (
	// HostRuleExact matches only the exact host.
	HostRuleExact HostRuleKind = iota
	// HostRuleSuffix matches the host and all its subdomains (apex-inclusive).
	HostRuleSuffix
)

// String returns a stable string representation of the rule kind.
func (k HostRuleKind) String() string {
	switch k {
	case HostRuleExact:
		return "exact"
	case HostRuleSuffix:
		return "suffix"
	default:
		return fmt.Sprintf("HostRuleKind(%d)", k)
	}
}

// ParseHostRuleKind converts a string into a HostRuleKind.
// Accepts: "exact", "suffix" (case-insensitive).
func ParseHostRuleKind(s string) (HostRuleKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exact":
		return HostRuleExact, nil
	case "suffix":
		return HostRuleSuffix, nil
	default:
		return 0, fmt.Errorf("unsupported HostRuleKind: %q", s)
	}
}

// RuleAction says what a matched rule does to the request.
type RuleAction uint8

const (
	// ActionBlock blocks the request.
	ActionBlock RuleAction = iota
	// ActionAllow is an exception ("@@") and overrides any block rule.
	ActionAllow
)

// String returns a stable string representation of the action.
func (a RuleAction) String() string {
	switch a {
	case ActionBlock:
		return "block"
	case ActionAllow:
		return "allow"
	default:
		return fmt.Sprintf("RuleAction(%d)", a)
	}
}

// HostRule is a single host-level rule sourced from a filter list or the
// built-in rule set.
//
// Notes:
// - Name is expected to be canonical and without a trailing dot.
// - Source identifies where the rule came from (list URL, file path, "default").
type HostRule struct {
	Name    string       // canonical host, e.g. "doubleclick.net"
	Kind    HostRuleKind // exact or suffix (apex-inclusive)
	Action  RuleAction   // block or allow
	Source  string       // list identifier
	AddedAt time.Time    // ingestion timestamp
}

// NewHostRule constructs a HostRule and validates its fields.
func NewHostRule(name string, kind HostRuleKind, action RuleAction, source string, addedAt time.Time) (HostRule, error) {
	r := HostRule{
		Name:    strings.TrimSpace(name),
		Kind:    kind,
		Action:  action,
		Source:  strings.TrimSpace(source),
		AddedAt: addedAt,
	}
	if err := r.Validate(); err != nil {
		return HostRule{}, err
	}
	return r, nil
}

// NewExactHostRule convenience constructor for an exact block rule.
func NewExactHostRule(name, source string, addedAt time.Time) (HostRule, error) {
	return NewHostRule(name, HostRuleExact, ActionBlock, source, addedAt)
}

// NewSuffixHostRule convenience constructor for a suffix block rule.
func NewSuffixHostRule(name, source string, addedAt time.Time) (HostRule, error) {
	return NewHostRule(name, HostRuleSuffix, ActionBlock, source, addedAt)
}

// Validate checks the HostRule for required fields and supported values.
func (r HostRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name must not be empty")
	}
	if r.Source == "" {
		return fmt.Errorf("rule source must not be empty")
	}
	if r.AddedAt.IsZero() {
		return fmt.Errorf("rule addedAt must be set")
	}
	switch r.Kind {
	case HostRuleExact, HostRuleSuffix:
	default:
		return fmt.Errorf("unsupported HostRuleKind: %d", r.Kind)
	}
	switch r.Action {
	case ActionBlock, ActionAllow:
	default:
		return fmt.Errorf("unsupported RuleAction: %d", r.Action)
	}
	return nil
}

// IsExact returns true when the rule kind is exact.
func (r HostRule) IsExact() bool { return r.Kind == HostRuleExact }

// IsSuffix returns true when the rule kind is suffix (apex-inclusive).
func (r HostRule) IsSuffix() bool { return r.Kind == HostRuleSuffix }

// IsAllow returns true for exception rules.
func (r HostRule) IsAllow() bool { return r.Action == ActionAllow }
