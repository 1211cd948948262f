package parsers

import (
	"strings"
	"unicode"

	"github.com/haukened/rr-adblock/internal/adblock/common/urlutil"
	"github.com/haukened/rr-adblock/internal/adblock/domain"
)

// ruleKindFromRaw decides the HostRuleKind based on the raw, uncanonicalized input.
// Returns HostRuleSuffix if the name begins with "*." or ".", otherwise HostRuleExact.
func ruleKindFromRaw(raw string) domain.HostRuleKind {
	if strings.HasPrefix(raw, "*.") || strings.HasPrefix(raw, ".") {
		return domain.HostRuleSuffix
	}
	return domain.HostRuleExact
}

// isValidFQDN checks whether the provided string is a plausible host name:
//   - The total length must not exceed 255 characters.
//   - The name must contain at least two labels.
//   - Each label must be between 1 and 63 characters long.
//   - The first label must start with a letter, number, or wildcard character.
//   - No characters that cannot appear in a host.
func isValidFQDN(name string) bool {
	if len(name) > 255 {
		return false
	}
	if strings.ContainsAny(name, "/:?#@ \t*^|$") {
		return false
	}
	labels := strings.Split(name, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if len(label) > 63 || len(label) == 0 {
			return false
		}
	}
	runes := []rune(labels[0])
	if !isAlphaNumeric(runes[0]) && !isWildcard(runes[0]) {
		return false
	}
	return true
}

// normalizeDomainName trims whitespace, removes any leading "*." or "."
// prefix, and returns the canonical host.
func normalizeDomainName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "*.")
	name = strings.TrimPrefix(name, ".")
	return urlutil.CanonicalHost(name)
}

// isAlphaNumeric reports whether the given rune is a letter or digit.
func isAlphaNumeric(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// isWildcard checks if the given rune represents a wildcard character ('*').
func isWildcard(r rune) bool {
	return r == '*'
}

// stripLineBOM removes a UTF-8 byte order mark at the start of a line.
func stripLineBOM(line string) string {
	return strings.TrimPrefix(line, "\uFEFF")
}

// classifyLine reports whether a line is blank or a whole-line '#' comment.
func classifyLine(line string) (isEmpty, isComment bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true, false
	}
	return false, strings.HasPrefix(trimmed, "#")
}

// stripInlineComment removes a trailing '#' comment.
func stripInlineComment(line string) string {
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		return line[:idx]
	}
	return line
}
