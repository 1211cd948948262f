package urlutil

import "strings"

// splitScheme returns the lower-cased scheme (without "://") and the remainder.
// Inputs without a scheme return an empty scheme and the input unchanged.
func splitScheme(raw string) (string, string) {
	if i := strings.Index(raw, "://"); i >= 0 {
		return strings.ToLower(raw[:i]), raw[i+3:]
	}
	return "", raw
}

// authorityEnd returns the index where the authority part of rest ends.
func authorityEnd(rest string) int {
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		return i
	}
	return len(rest)
}

// ExtractHost returns the canonical host of a URL. Scheme-less inputs such as
// "ads.example.com/banner.js" are accepted. Userinfo and port are dropped.
func ExtractHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	_, rest := splitScheme(raw)
	authority := rest[:authorityEnd(rest)]
	if i := strings.LastIndexByte(authority, '@'); i >= 0 {
		authority = authority[i+1:]
	}
	if strings.HasPrefix(authority, "[") {
		if end := strings.IndexByte(authority, ']'); end > 0 {
			return strings.ToLower(authority[1:end])
		}
		return ""
	}
	if i := strings.IndexByte(authority, ':'); i >= 0 {
		authority = authority[:i]
	}
	return CanonicalHost(authority)
}

// ExtractPath returns the path component of a URL, "/" when there is none.
func ExtractPath(raw string) string {
	_, rest := splitScheme(strings.TrimSpace(raw))
	i := strings.IndexByte(rest, '/')
	if i < 0 {
		return "/"
	}
	path := rest[i:]
	if j := strings.IndexAny(path, "?#"); j >= 0 {
		path = path[:j]
	}
	return path
}

// Origin returns scheme://authority for a URL, lower-cased, or "" when the
// URL has no scheme.
func Origin(raw string) string {
	scheme, rest := splitScheme(strings.TrimSpace(raw))
	if scheme == "" {
		return ""
	}
	return scheme + "://" + strings.ToLower(rest[:authorityEnd(rest)])
}

// NormalizeURL lower-cases the scheme and authority of a URL, keeps the case of
// the path and query, and drops a single trailing slash that is not part of
// the scheme separator.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	scheme, rest := splitScheme(raw)
	end := authorityEnd(rest)
	normalized := strings.ToLower(rest[:end]) + rest[end:]
	if scheme != "" {
		normalized = scheme + "://" + normalized
	}
	if len(normalized) > 1 && strings.HasSuffix(normalized, "/") && !strings.HasSuffix(normalized, "://") {
		normalized = strings.TrimSuffix(normalized, "/")
	}
	return normalized
}
