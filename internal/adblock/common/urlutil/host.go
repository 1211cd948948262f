package urlutil

import (
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

// CanonicalHost returns a host name in canonical form:
// - Trimmed of surrounding whitespace
// - Lowercased
// - Converted to its ASCII (punycode) form when it is an IDN
// - No trailing dot
func CanonicalHost(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ToLower(name)
	for strings.HasSuffix(name, ".") {
		name = strings.TrimSuffix(name, ".")
	}
	if name == "" {
		return ""
	}
	if ascii, err := idna.Lookup.ToASCII(name); err == nil && ascii != "" {
		return ascii
	}
	return name
}

// ApexDomain returns the registrable domain (eTLD+1) for name.
// Falls back to the canonical name when the public suffix list cannot answer,
// e.g. for IP literals or single-label hosts.
func ApexDomain(name string) string {
	name = CanonicalHost(name)
	apex, err := publicsuffix.EffectiveTLDPlusOne(name)
	if err != nil {
		return name
	}
	return apex
}

// DomainMatches reports whether host equals pattern or is a subdomain of it.
// A leading "*." on the pattern is accepted and means the same thing.
func DomainMatches(host, pattern string) bool {
	if host == "" || pattern == "" {
		return false
	}
	pattern = strings.TrimPrefix(pattern, "*.")
	if host == pattern {
		return true
	}
	return strings.HasSuffix(host, "."+pattern)
}

// IsThirdParty reports whether requestURL belongs to a different registrable
// domain than documentURL. An empty documentURL is treated as first-party.
func IsThirdParty(documentURL, requestURL string) bool {
	if documentURL == "" {
		return false
	}
	doc := ExtractHost(documentURL)
	req := ExtractHost(requestURL)
	if doc == "" || req == "" {
		return false
	}
	return ApexDomain(doc) != ApexDomain(req)
}
