package pattern

import (
	"fmt"
	"strings"
)

// Class groups pattern rules by cost and aggressiveness. The engine's
// performance mode decides which classes are evaluated.
type Class uint8

const (
	// ClassPath covers path, anchored, regex and substring rules.
	ClassPath Class = iota
	// ClassKeyword covers bare keyword wildcards such as "*ads*".
	ClassKeyword
)

// String returns a stable string representation of the class.
func (c Class) String() string {
	switch c {
	case ClassPath:
		return "path"
	case ClassKeyword:
		return "keyword"
	default:
		return fmt.Sprintf("Class(%d)", c)
	}
}

// Options are the "$" modifiers of a rule that restrict where it applies.
type Options struct {
	IncludeDomains []string // document domains the rule is limited to
	ExcludeDomains []string // document domains the rule never applies on
	IncludeTypes   []string // resource types the rule is limited to
	ExcludeTypes   []string // resource types the rule never applies to
	ThirdParty     *bool    // nil: any, true: third-party only, false: first-party only
}

// Restricts reports whether any option narrows where the rule applies.
func (o Options) Restricts() bool {
	return len(o.IncludeDomains) > 0 || len(o.ExcludeDomains) > 0 ||
		len(o.IncludeTypes) > 0 || len(o.ExcludeTypes) > 0 || o.ThirdParty != nil
}

// Rule is a URL pattern rule in filter-list syntax with "@@" and the option
// suffix already split off.
type Rule struct {
	Pattern string
	Allow   bool
	Source  string
	Class   Class
	Options Options
}

// Line renders the rule back into filter-list syntax, options omitted.
func (r Rule) Line() string {
	if r.Allow {
		return "@@" + r.Pattern
	}
	return r.Pattern
}

// Cosmetic is an element-hiding rule ("##selector"), optionally limited to
// page domains ("example.com##selector").
type Cosmetic struct {
	Selector string
	Domains  []string
	Source   string
}

// AppliesTo reports whether the cosmetic rule applies on host. Generic rules
// apply everywhere.
func (c Cosmetic) AppliesTo(host string) bool {
	if len(c.Domains) == 0 {
		return true
	}
	for _, d := range c.Domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// Request is the input to pattern matching. DocumentURL and Type are
// optional; rules restricted by them do not match when they are empty.
type Request struct {
	URL         string
	DocumentURL string
	Type        string
}
