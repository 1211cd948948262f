package parsers

import (
	"io"
	"strings"
	"time"

	logpkg "github.com/haukened/rr-adblock/internal/adblock/common/log"
	"github.com/haukened/rr-adblock/internal/adblock/common/urlutil"
	"github.com/haukened/rr-adblock/internal/adblock/domain"
	"github.com/haukened/rr-adblock/internal/adblock/repos/rules/pattern"
)

// FilterSet is everything parsed out of one or more lists.
type FilterSet struct {
	Hosts     []domain.HostRule  // "||host^" anchors and host/plain list entries
	Patterns  []pattern.Rule     // URL pattern rules
	Cosmetics []pattern.Cosmetic // element-hiding selectors
}

// Len returns the total number of rules in the set.
func (s *FilterSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Hosts) + len(s.Patterns) + len(s.Cosmetics)
}

// Append adds every rule of other to s.
func (s *FilterSet) Append(other *FilterSet) {
	if other == nil {
		return
	}
	s.Hosts = append(s.Hosts, other.Hosts...)
	s.Patterns = append(s.Patterns, other.Patterns...)
	s.Cosmetics = append(s.Cosmetics, other.Cosmetics...)
}

// resourceTypes are the "$" options naming a resource type.
var resourceTypes = map[string]struct{}{
	"script": {}, "image": {}, "stylesheet": {}, "xmlhttprequest": {}, "subdocument": {},
	"document": {}, "object": {}, "ping": {}, "websocket": {}, "media": {}, "font": {}, "other": {},
}

// nonBlockingOptions mark rules that rewrite rather than block. Those rules are skipped.
var nonBlockingOptions = map[string]struct{}{
	"removeparam": {}, "csp": {}, "replace": {}, "cookie": {}, "redirect-rule": {},
	"permissions": {}, "header": {}, "removeheader": {}, "jsonprune": {}, "hls": {},
	"referrerpolicy": {}, "urltransform": {},
}

// ParseFilterLine parses a single filter-list line. ok is false for comments,
// blank lines, and rules that are not supported.
func ParseFilterLine(line, source string, now time.Time) (set FilterSet, ok bool) {
	line = strings.TrimSpace(stripLineBOM(line))
	if line == "" || strings.HasPrefix(line, "!") || strings.HasPrefix(line, "[") {
		return FilterSet{}, false
	}

	if i := strings.Index(line, "##"); i >= 0 {
		c, ok := parseCosmetic(line[:i], line[i+2:], source)
		if !ok {
			return FilterSet{}, false
		}
		return FilterSet{Cosmetics: []pattern.Cosmetic{c}}, true
	}
	// "#@#", "#?#", "#$#" and friends are extended cosmetic syntax; a line
	// starting with '#' is a comment.
	if strings.HasPrefix(line, "#") || strings.Contains(line, "#@#") || strings.Contains(line, "#?#") || strings.Contains(line, "#$#") {
		return FilterSet{}, false
	}

	allow := false
	if strings.HasPrefix(line, "@@") {
		allow = true
		line = line[2:]
	}

	body, opts, skip := splitOptions(line)
	if skip || body == "" {
		return FilterSet{}, false
	}

	if !opts.Restricts() {
		if host, isHost := hostAnchor(body); isHost {
			action := domain.ActionBlock
			if allow {
				action = domain.ActionAllow
			}
			r, err := domain.NewHostRule(host, domain.HostRuleSuffix, action, source, now)
			if err == nil {
				return FilterSet{Hosts: []domain.HostRule{r}}, true
			}
		}
	}

	return FilterSet{Patterns: []pattern.Rule{{
		Pattern: body,
		Allow:   allow,
		Source:  source,
		Class:   classify(body),
		Options: opts,
	}}}, true
}

// ParseFilterList parses adblock-style filter lists.
//
// Supported:
// - "!" comments and "[Adblock Plus x.y]" headers
// - "@@" exceptions, which override block rules
// - "||host^" anchors become suffix host rules (apex-inclusive)
// - "/regex/", "*" and "^" wildcards, "|" anchors, and plain substrings become pattern rules
// - "domain=", resource type and third-party options
// - "##selector" and "domain.com##selector" element hiding
//
// Modifier-only lines (e.g. "$removeparam=utm_source") and rewrite rules are skipped.
func ParseFilterList(r io.Reader, source string, logger logpkg.Logger, now time.Time) (*FilterSet, error) {
	scanner := newScanner(r)
	out := &FilterSet{}
	seen := make(map[string]struct{})

	logger.Debug(map[string]any{"source": source}, "parse_filter_list_start")
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		raw := strings.TrimSpace(scanner.Text())
		if _, dup := seen[raw]; dup {
			logger.Debug(map[string]any{"line": lineNum}, "skip_duplicate")
			continue
		}
		set, ok := ParseFilterLine(raw, source, now)
		if !ok {
			logger.Debug(map[string]any{"line": lineNum}, "skip_unsupported")
			continue
		}
		seen[raw] = struct{}{}
		out.Append(&set)
	}
	if err := scanner.Err(); err != nil {
		logger.Debug(map[string]any{"source": source, "error": err.Error()}, "parse_filter_list_scan_error")
		return nil, err
	}
	logger.Debug(map[string]any{
		"source":    source,
		"hosts":     len(out.Hosts),
		"patterns":  len(out.Patterns),
		"cosmetics": len(out.Cosmetics),
	}, "parse_filter_list_done")
	return out, nil
}

// parseCosmetic builds an element-hiding rule. Negated domains ("~a.com")
// are dropped; a rule left with only negated domains is generic.
func parseCosmetic(domains, selector, source string) (pattern.Cosmetic, bool) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return pattern.Cosmetic{}, false
	}
	c := pattern.Cosmetic{Selector: selector, Source: source}
	for _, d := range strings.Split(domains, ",") {
		d = strings.TrimSpace(d)
		if d == "" || strings.HasPrefix(d, "~") {
			continue
		}
		c.Domains = append(c.Domains, urlutil.CanonicalHost(d))
	}
	return c, true
}

// splitOptions separates the "$" option suffix from a rule body and parses it.
// skip is true when the rule carries an option that rewrites requests.
func splitOptions(line string) (body string, opts pattern.Options, skip bool) {
	idx := strings.LastIndexByte(line, '$')
	if idx < 0 || !looksLikeOptions(line[idx+1:]) {
		return line, pattern.Options{}, false
	}
	body = line[:idx]
	for _, opt := range strings.Split(line[idx+1:], ",") {
		opt = strings.TrimSpace(opt)
		name, value, _ := strings.Cut(opt, "=")
		negated := strings.HasPrefix(name, "~")
		name = strings.TrimPrefix(name, "~")
		if _, ok := nonBlockingOptions[name]; ok {
			return body, opts, true
		}
		switch {
		case name == "domain":
			for _, d := range strings.Split(value, "|") {
				d = strings.TrimSpace(d)
				if strings.HasPrefix(d, "~") {
					opts.ExcludeDomains = append(opts.ExcludeDomains, urlutil.CanonicalHost(d[1:]))
				} else if d != "" {
					opts.IncludeDomains = append(opts.IncludeDomains, urlutil.CanonicalHost(d))
				}
			}
		case name == "third-party" || name == "3p":
			tp := !negated
			opts.ThirdParty = &tp
		case name == "first-party" || name == "1p":
			tp := negated
			opts.ThirdParty = &tp
		default:
			if _, ok := resourceTypes[name]; ok {
				if negated {
					opts.ExcludeTypes = append(opts.ExcludeTypes, name)
				} else {
					opts.IncludeTypes = append(opts.IncludeTypes, name)
				}
			}
			// anything else (important, redirect, match-case, ...) does not
			// change whether the request is blocked
		}
	}
	return body, opts, false
}

// looksLikeOptions reports whether s is a comma-separated option list rather
// than part of a pattern (such as the "$" anchor inside a regex).
func looksLikeOptions(s string) bool {
	if s == "" {
		return false
	}
	for _, opt := range strings.Split(s, ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(opt), "=")
		name = strings.TrimPrefix(name, "~")
		if name == "" {
			return false
		}
		for _, r := range name {
			if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '-' && r != '_' {
				return false
			}
		}
	}
	return true
}

// hostAnchor extracts the host of a pure "||host^" rule.
func hostAnchor(body string) (string, bool) {
	if !strings.HasPrefix(body, "||") {
		return "", false
	}
	rest := strings.TrimSuffix(body[2:], "|")
	if !strings.HasSuffix(rest, "^") {
		return "", false
	}
	host := urlutil.CanonicalHost(strings.TrimSuffix(rest, "^"))
	if !isValidFQDN(host) {
		return "", false
	}
	return host, true
}

// classify places bare keyword wildcards ("*ads*") in the keyword class and
// everything else in the path class.
func classify(body string) pattern.Class {
	if len(body) > 2 && strings.HasPrefix(body, "*") && strings.HasSuffix(body, "*") &&
		!strings.ContainsAny(body[1:len(body)-1], "/^|*") {
		return pattern.ClassKeyword
	}
	return pattern.ClassPath
}
