package pattern

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/multierr"

	"github.com/haukened/rr-adblock/internal/adblock/common/urlutil"
)

// Mask selects which rule classes are evaluated for block rules.
type Mask uint8

// MaskOf builds a mask from classes.
func MaskOf(classes ...Class) Mask {
	var m Mask
	for _, c := range classes {
		m |= 1 << c
	}
	return m
}

// Has reports whether the mask includes class c.
func (m Mask) Has(c Class) bool { return m&(1<<c) != 0 }

// AllClasses evaluates every class.
var AllClasses = MaskOf(ClassPath, ClassKeyword)

// separatorClass is what "^" expands to: one separator character or the end of the URL.
const separatorClass = `(?:[/?&=:]|$)`

// hostAnchor is what a leading "||" expands to: scheme plus any subdomain prefix.
const hostAnchor = `^[a-z][a-z0-9+.\-]*://(?:[^/?#]*\.)?`

// Result is the outcome of matching a request against a Set.
type Result struct {
	Matched bool
	Allow   bool
	Rule    Rule
}

type matcher struct {
	rule   Rule
	re     *regexp.Regexp
	substr string
}

// Set is an immutable, compiled collection of pattern rules. It is safe for
// concurrent use.
type Set struct {
	allow []matcher
	block []matcher
}

// Compile builds a Set from rules. Rules that fail to compile are skipped and
// their errors are combined into the returned error; the Set is always usable.
func Compile(rules []Rule) (*Set, error) {
	s := &Set{}
	var errs error
	for _, r := range rules {
		m, err := compileRule(r)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if r.Allow {
			s.allow = append(s.allow, m)
		} else {
			s.block = append(s.block, m)
		}
	}
	return s, errs
}

// ToRegex converts a filter-list pattern into an RE2 expression.
//
//	/re/   literal regular expression
//	||     scheme and optional subdomains
//	|      start or end of the URL
//	*      any run of characters
//	^      a separator character or the end of the URL
func ToRegex(p string) string {
	if len(p) >= 2 && strings.HasPrefix(p, "/") && strings.HasSuffix(p, "/") {
		return "(?i)" + p[1:len(p)-1]
	}
	var b strings.Builder
	b.WriteString("(?i)")
	switch {
	case strings.HasPrefix(p, "||"):
		b.WriteString(hostAnchor)
		p = p[2:]
	case strings.HasPrefix(p, "|"):
		b.WriteString("^")
		p = p[1:]
	}
	endAnchor := false
	if strings.HasSuffix(p, "|") {
		endAnchor = true
		p = p[:len(p)-1]
	}
	for _, r := range p {
		switch r {
		case '*':
			b.WriteString(".*")
		case '^':
			b.WriteString(separatorClass)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	if endAnchor {
		b.WriteString("$")
	}
	return b.String()
}

// needsRegex reports whether p cannot be matched as a plain substring.
func needsRegex(p string) bool {
	if len(p) >= 2 && strings.HasPrefix(p, "/") && strings.HasSuffix(p, "/") {
		return true
	}
	return strings.ContainsAny(p, "*^|")
}

func compileRule(r Rule) (matcher, error) {
	if r.Pattern == "" {
		return matcher{}, fmt.Errorf("empty pattern")
	}
	m := matcher{rule: r}
	if !needsRegex(r.Pattern) {
		m.substr = strings.ToLower(r.Pattern)
		return m, nil
	}
	re, err := regexp.Compile(ToRegex(r.Pattern))
	if err != nil {
		return matcher{}, fmt.Errorf("pattern %q: %w", r.Pattern, err)
	}
	m.re = re
	return m, nil
}

// Len returns the number of block and allow rules in the set.
func (s *Set) Len() (block, allow int) {
	if s == nil {
		return 0, 0
	}
	return len(s.block), len(s.allow)
}

// Match evaluates req. Exception rules are checked first and always apply;
// block rules are limited to the classes in mask.
func (s *Set) Match(req Request, mask Mask) Result {
	if s == nil || req.URL == "" {
		return Result{}
	}
	lower := strings.ToLower(req.URL)
	docHost := urlutil.ExtractHost(req.DocumentURL)
	for _, m := range s.allow {
		if m.matches(req, lower, docHost) {
			return Result{Matched: true, Allow: true, Rule: m.rule}
		}
	}
	for _, m := range s.block {
		if !mask.Has(m.rule.Class) {
			continue
		}
		if m.matches(req, lower, docHost) {
			return Result{Matched: true, Rule: m.rule}
		}
	}
	return Result{}
}

func (m matcher) matches(req Request, lowerURL, docHost string) bool {
	if !m.applies(req, docHost) {
		return false
	}
	if m.re != nil {
		return m.re.MatchString(req.URL)
	}
	return strings.Contains(lowerURL, m.substr)
}

// applies checks the rule options against the request context.
func (m matcher) applies(req Request, docHost string) bool {
	o := m.rule.Options
	if !o.Restricts() {
		return true
	}
	for _, t := range o.ExcludeTypes {
		if req.Type == t {
			return false
		}
	}
	if len(o.IncludeTypes) > 0 && !contains(o.IncludeTypes, req.Type) {
		return false
	}
	for _, d := range o.ExcludeDomains {
		if urlutil.DomainMatches(docHost, d) {
			return false
		}
	}
	if len(o.IncludeDomains) > 0 {
		ok := false
		for _, d := range o.IncludeDomains {
			if urlutil.DomainMatches(docHost, d) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if o.ThirdParty != nil {
		if req.DocumentURL == "" {
			return false
		}
		if urlutil.IsThirdParty(req.DocumentURL, req.URL) != *o.ThirdParty {
			return false
		}
	}
	return true
}

func contains(list []string, v string) bool {
	if v == "" {
		return false
	}
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
