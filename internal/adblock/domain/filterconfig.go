package domain

import (
	"fmt"
	"strings"
	"time"
)

// FilterRuleType is the effect of a FilterRule.
type FilterRuleType string

const (
	RuleTypeBlock    FilterRuleType = "block"
	RuleTypeAllow    FilterRuleType = "allow"
	RuleTypeRedirect FilterRuleType = "redirect"
)

// Valid reports whether t is one of the supported rule types.
func (t FilterRuleType) Valid() bool {
	switch t {
	case RuleTypeBlock, RuleTypeAllow, RuleTypeRedirect:
		return true
	}
	return false
}

// FilterRule is a single pattern-based rule as exposed through the
// configuration capability. It is opaque to the controller.
type FilterRule struct {
	ID           string         `json:"id" koanf:"id" validate:"required"`
	Pattern      string         `json:"pattern" koanf:"pattern" validate:"required"`
	Type         FilterRuleType `json:"type" koanf:"type" validate:"oneof=block allow redirect"`
	Domains      []string       `json:"domains,omitempty" koanf:"domains"`
	ContentTypes []string       `json:"contentTypes,omitempty" koanf:"content_types"`
	IsEnabled    bool           `json:"isEnabled" koanf:"is_enabled"`
}

// NewFilterRule builds an enabled rule from a raw filter line. Lines starting
// with "@@" become allow rules with the prefix stripped.
func NewFilterRule(id, line string) (FilterRule, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return FilterRule{}, fmt.Errorf("rule pattern must not be empty")
	}
	r := FilterRule{ID: id, Pattern: line, Type: RuleTypeBlock, IsEnabled: true}
	if strings.HasPrefix(line, "@@") {
		r.Type = RuleTypeAllow
		r.Pattern = strings.TrimPrefix(line, "@@")
	}
	if r.Pattern == "" {
		return FilterRule{}, fmt.Errorf("rule pattern must not be empty")
	}
	return r, nil
}

// Line renders the rule back into filter-list syntax.
func (r FilterRule) Line() string {
	if r.Type == RuleTypeAllow {
		return "@@" + r.Pattern
	}
	return r.Pattern
}

// FilterList is a named, versioned collection of rules.
type FilterList struct {
	ID          string       `json:"id" koanf:"id"`
	Name        string       `json:"name" koanf:"name"`
	URL         string       `json:"url" koanf:"url"`
	Version     string       `json:"version" koanf:"version"`
	LastUpdated time.Time    `json:"lastUpdated" koanf:"last_updated"`
	Rules       []FilterRule `json:"rules,omitempty" koanf:"rules"`
	IsEnabled   bool         `json:"isEnabled" koanf:"is_enabled"`
}

// FilterConfiguration is the engine-side configuration exposed through the
// optional config capabilities.
type FilterConfiguration struct {
	IsEnabled          bool            `json:"isEnabled"`
	FilterLists        []FilterList    `json:"filterLists"`
	CustomRules        []FilterRule    `json:"customRules"`
	WhitelistedDomains []string        `json:"whitelistedDomains"`
	PerformanceMode    PerformanceMode `json:"performanceMode"`
}

// Clone returns a deep copy so callers cannot mutate engine state. Empty
// slices come back nil.
func (c FilterConfiguration) Clone() FilterConfiguration {
	out := c
	out.FilterLists = nil
	if len(c.FilterLists) > 0 {
		out.FilterLists = make([]FilterList, len(c.FilterLists))
		for i, l := range c.FilterLists {
			l.Rules = append([]FilterRule(nil), l.Rules...)
			out.FilterLists[i] = l
		}
	}
	out.CustomRules = append([]FilterRule(nil), c.CustomRules...)
	out.WhitelistedDomains = append([]string(nil), c.WhitelistedDomains...)
	return out
}

// FilterConfigPatch is a partial FilterConfiguration. Nil fields are left
// untouched when the patch is applied.
type FilterConfigPatch struct {
	IsEnabled          *bool            `json:"isEnabled,omitempty" koanf:"is_enabled"`
	FilterLists        []FilterList     `json:"filterLists,omitempty" koanf:"filter_lists"`
	CustomRules        []FilterRule     `json:"customRules,omitempty" koanf:"custom_rules" validate:"omitempty,dive"`
	WhitelistedDomains []string         `json:"whitelistedDomains,omitempty" koanf:"whitelisted_domains" validate:"omitempty,dive,required"`
	PerformanceMode    *PerformanceMode `json:"performanceMode,omitempty" koanf:"performance_mode" validate:"omitempty,oneof=balanced aggressive minimal"`
}

// IsEmpty reports whether the patch changes nothing.
func (p FilterConfigPatch) IsEmpty() bool {
	return p.IsEnabled == nil && p.FilterLists == nil && p.CustomRules == nil &&
		p.WhitelistedDomains == nil && p.PerformanceMode == nil
}

// TouchesRules reports whether the patch replaces rule sources, which means
// the rule set has to be rebuilt. Mode, whitelist and enabled apply in place.
func (p FilterConfigPatch) TouchesRules() bool {
	return p.FilterLists != nil || p.CustomRules != nil
}

// Apply returns c with every non-nil field of p applied.
func (p FilterConfigPatch) Apply(c FilterConfiguration) FilterConfiguration {
	out := c.Clone()
	if p.IsEnabled != nil {
		out.IsEnabled = *p.IsEnabled
	}
	if p.FilterLists != nil {
		out.FilterLists = append([]FilterList(nil), p.FilterLists...)
	}
	if p.CustomRules != nil {
		out.CustomRules = append([]FilterRule(nil), p.CustomRules...)
	}
	if p.WhitelistedDomains != nil {
		out.WhitelistedDomains = append([]string(nil), p.WhitelistedDomains...)
	}
	if p.PerformanceMode != nil {
		out.PerformanceMode = *p.PerformanceMode
	}
	return out
}

// Merge overlays other onto p; fields set in other win.
func (p FilterConfigPatch) Merge(other FilterConfigPatch) FilterConfigPatch {
	out := p
	if other.IsEnabled != nil {
		out.IsEnabled = other.IsEnabled
	}
	if other.FilterLists != nil {
		out.FilterLists = append(append([]FilterList(nil), out.FilterLists...), other.FilterLists...)
	}
	if other.CustomRules != nil {
		out.CustomRules = append(append([]FilterRule(nil), out.CustomRules...), other.CustomRules...)
	}
	if other.WhitelistedDomains != nil {
		out.WhitelistedDomains = append(append([]string(nil), out.WhitelistedDomains...), other.WhitelistedDomains...)
	}
	if other.PerformanceMode != nil {
		out.PerformanceMode = other.PerformanceMode
	}
	return out
}
