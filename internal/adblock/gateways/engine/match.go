package engine

import (
	"context"
	"strings"

	"github.com/haukened/rr-adblock/internal/adblock/common/urlutil"
	"github.com/haukened/rr-adblock/internal/adblock/domain"
	"github.com/haukened/rr-adblock/internal/adblock/repos/rules/pattern"
)

// maskFor maps a performance mode onto the pattern classes it evaluates.
// Host rules and allow rules apply in every mode.
func maskFor(m domain.PerformanceMode) pattern.Mask {
	switch m.OrDefault() {
	case domain.PerformanceMinimal:
		return 0
	case domain.PerformanceAggressive:
		return pattern.AllClasses
	default:
		return pattern.MaskOf(pattern.ClassPath)
	}
}

// FilterRequest reports whether url should be blocked.
func (e *Engine) FilterRequest(ctx context.Context, url string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return e.match(url, "", ""), nil
}

// MatchResource is FilterRequest with the document URL and resource type,
// so "$domain", "$third-party" and type options apply.
func (e *Engine) MatchResource(ctx context.Context, url, documentURL, resourceType string) bool {
	if ctx.Err() != nil {
		return false
	}
	return e.match(url, documentURL, resourceType)
}

// match evaluates whitelist, then allow rules, then block rules.
func (e *Engine) match(raw, documentURL, resourceType string) bool {
	e.mu.RLock()
	active := e.initialized && e.cfg.IsEnabled
	whitelist := e.whitelist
	patterns := e.patterns
	mask := maskFor(e.cfg.PerformanceMode)
	logging := e.logging
	e.mu.RUnlock()

	if !active || strings.TrimSpace(raw) == "" {
		return false
	}

	url := urlutil.NormalizeURL(raw)
	host := urlutil.ExtractHost(url)
	for _, w := range whitelist {
		if urlutil.DomainMatches(host, w) {
			if logging {
				e.logger.Debug(map[string]any{"url": raw, "domain": w}, "request_whitelisted")
			}
			return false
		}
	}

	hostDecision := domain.EmptyDecision()
	if host != "" {
		hostDecision = e.repo.Decide(host)
	}
	if hostDecision.IsAllowed() {
		if logging {
			e.logger.Debug(map[string]any{"url": raw, "rule": hostDecision.MatchedRule, "source": hostDecision.Source}, "request_allowed_by_rule")
		}
		return false
	}

	res := patterns.Match(pattern.Request{URL: url, DocumentURL: documentURL, Type: resourceType}, mask)
	if res.Matched && res.Allow {
		if logging {
			e.logger.Debug(map[string]any{"url": raw, "rule": res.Rule.Line(), "source": res.Rule.Source}, "request_allowed_by_rule")
		}
		return false
	}

	switch {
	case hostDecision.IsBlocked():
		if logging {
			e.logger.Debug(map[string]any{"url": raw, "rule": hostDecision.MatchedRule, "source": hostDecision.Source}, "request_blocked")
		}
		return true
	case res.Matched:
		if logging {
			e.logger.Debug(map[string]any{"url": raw, "rule": res.Rule.Line(), "source": res.Rule.Source}, "request_blocked")
		}
		return true
	}
	return false
}

// Selectors returns the element-hiding selectors that apply on host.
func (e *Engine) Selectors(host string) []string {
	host = urlutil.CanonicalHost(host)
	e.mu.RLock()
	cosmetics := e.cosmetics
	e.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []string
	for _, c := range cosmetics {
		if !c.AppliesTo(host) {
			continue
		}
		if _, dup := seen[c.Selector]; dup {
			continue
		}
		seen[c.Selector] = struct{}{}
		out = append(out, c.Selector)
	}
	return out
}
