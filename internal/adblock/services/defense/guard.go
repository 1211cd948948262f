// Package defense is the content-view side of ad blocking: navigation and
// resource interception, popup and redirect vetoes, and the cleanup script
// injected into the page. Every check works without the filter controller.
package defense

import (
	"context"
	"strings"

	"github.com/haukened/rr-adblock/internal/adblock/common/log"
	"github.com/haukened/rr-adblock/internal/adblock/common/urlutil"
	"github.com/haukened/rr-adblock/internal/adblock/services/filter"
)

// ResourceMatcher is an optional engine capability for type-aware matching of
// sub-resources. documentURL and resourceType may be empty.
type ResourceMatcher interface {
	MatchResource(ctx context.Context, url, documentURL, resourceType string) bool
}

// SelectorSource provides element-hiding selectors for a page host.
type SelectorSource interface {
	Selectors(host string) []string
}

// GuardOptions configures a Guard. Every field is optional.
type GuardOptions struct {
	Checker   filter.RequestChecker
	Matcher   ResourceMatcher
	Selectors SelectorSource
	Logger    log.Logger
	// TrustedOrigins limits navigation to these origins. Empty disables the check.
	TrustedOrigins []string
	// ExtraDomains extend DefaultAdDomains.
	ExtraDomains []string
	// AllowSameOriginRedirects lets programmatic redirects stay on the same origin.
	AllowSameOriginRedirects bool
	// Script configures CleanupScript beyond the selectors.
	Script ScriptOptions
}

// Guard implements the content-view defense contracts.
type Guard struct {
	checker        filter.RequestChecker
	matcher        ResourceMatcher
	selectors      SelectorSource
	logger         log.Logger
	origins        []string
	domains        []string
	sameOrigin     bool
	scriptDefaults ScriptOptions
}

// NewGuard builds a Guard.
func NewGuard(opts GuardOptions) *Guard {
	logger := opts.Logger
	if logger == nil {
		logger = log.Component("defense")
	}
	origins := make([]string, 0, len(opts.TrustedOrigins))
	for _, o := range opts.TrustedOrigins {
		if o = urlutil.Origin(o); o != "" {
			origins = append(origins, o)
		}
	}
	domains := append([]string(nil), DefaultAdDomains...)
	for _, d := range opts.ExtraDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			domains = append(domains, d)
		}
	}
	script := opts.Script
	script.AllowSameOriginRedirects = script.AllowSameOriginRedirects || opts.AllowSameOriginRedirects
	return &Guard{
		checker:        opts.Checker,
		matcher:        opts.Matcher,
		selectors:      opts.Selectors,
		logger:         logger,
		origins:        origins,
		domains:        domains,
		sameOrigin:     opts.AllowSameOriginRedirects,
		scriptDefaults: script,
	}
}

// checkerReady reports whether the controller can be consulted.
func (g *Guard) checkerReady() bool {
	return g.checker != nil && g.checker.IsInitialized() && g.checker.IsEnabledCached()
}

// engineBlocks asks the controller, when ready, whether url is blocked.
func (g *Guard) engineBlocks(ctx context.Context, url string) bool {
	if !g.checkerReady() {
		return false
	}
	return g.checker.FilterRequestDetailed(ctx, url).ShouldBlock
}

// matchesAdDomain reports whether url contains a known ad or tracker domain.
func (g *Guard) matchesAdDomain(url string) (string, bool) {
	lower := strings.ToLower(url)
	for _, d := range g.domains {
		if strings.Contains(lower, d) {
			return d, true
		}
	}
	return "", false
}

// trusted reports whether target stays within a trusted origin.
func (g *Guard) trusted(target string) bool {
	if len(g.origins) == 0 {
		return true
	}
	origin := urlutil.Origin(target)
	for _, o := range g.origins {
		if origin == o {
			return true
		}
	}
	return false
}

// AllowNavigation gates a navigation before the content view loads target.
// It asks the controller first when it is ready, then falls back to the static
// domain list and the trusted origins.
func (g *Guard) AllowNavigation(ctx context.Context, target string) bool {
	if g.engineBlocks(ctx, target) {
		g.logger.Info(map[string]any{"url": target, "by": "engine"}, "navigation_blocked")
		return false
	}
	if d, ok := g.matchesAdDomain(target); ok {
		g.logger.Info(map[string]any{"url": target, "by": "domain", "domain": d}, "navigation_blocked")
		return false
	}
	if !g.trusted(target) {
		g.logger.Info(map[string]any{"url": target, "by": "origin"}, "navigation_blocked")
		return false
	}
	g.logger.Debug(map[string]any{"url": target}, "navigation_allowed")
	return true
}

// PopupRequest describes a new-window attempt from loaded content.
type PopupRequest struct {
	URL         string `json:"url"`
	SourceURL   string `json:"sourceUrl"`
	UserGesture bool   `json:"userGesture"`
}

// AllowPopup vetoes new-window requests. Content views never open popups.
func (g *Guard) AllowPopup(_ context.Context, req PopupRequest) bool {
	g.logger.Info(map[string]any{"url": req.URL, "source": req.SourceURL, "gesture": req.UserGesture}, "popup_blocked")
	return false
}

// AllowRedirect vetoes programmatic location changes. Same-origin redirects are
// allowed only when configured, and never to a URL the engine blocks.
func (g *Guard) AllowRedirect(ctx context.Context, from, to string) bool {
	if g.sameOrigin {
		fromOrigin := urlutil.Origin(from)
		if fromOrigin != "" && fromOrigin == urlutil.Origin(to) && !g.engineBlocks(ctx, to) {
			g.logger.Debug(map[string]any{"from": from, "to": to}, "redirect_allowed")
			return true
		}
	}
	g.logger.Info(map[string]any{"from": from, "to": to}, "redirect_blocked")
	return false
}

// CleanupScript renders the cleanup script for a page on host, adding the
// engine's element-hiding selectors to the defaults.
func (g *Guard) CleanupScript(host string) (string, error) {
	opts := g.scriptDefaults
	if g.selectors != nil {
		opts.Selectors = append(append([]string(nil), opts.Selectors...), g.selectors.Selectors(urlutil.CanonicalHost(host))...)
	}
	return CleanupScript(opts)
}
