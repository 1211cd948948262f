package engine

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/crypto/blake2b"

	"github.com/haukened/rr-adblock/internal/adblock/domain"
	"github.com/haukened/rr-adblock/internal/adblock/repos/rules/parsers"
	"github.com/haukened/rr-adblock/internal/adblock/repos/rules/pattern"
)

// RuleCounts reports how many rules of each kind are loaded.
type RuleCounts struct {
	Hosts     int `json:"hosts"`
	Patterns  int `json:"patterns"`
	Cosmetics int `json:"cosmetics"`
}

// Total returns the number of loaded rules.
func (c RuleCounts) Total() int { return c.Hosts + c.Patterns + c.Cosmetics }

// buildResult is a complete rule set ready to be installed.
type buildResult struct {
	cfg       domain.FilterConfiguration
	patterns  *pattern.Set
	cosmetics []pattern.Cosmetic
	counts    RuleCounts
	version   uint64
}

// build loads every rule source of cfg and rebuilds the host repository.
// Per-list failures are combined into the returned error alongside a usable
// result; a nil result means nothing was changed.
func (e *Engine) build(ctx context.Context, cfg domain.FilterConfiguration, force bool) (*buildResult, error) {
	now := e.clock.Now()
	set, err := parsers.ParseFilterList(strings.NewReader(defaultRules), defaultSource, e.logger, now)
	if err != nil {
		return nil, fmt.Errorf("parse default rules: %w", err)
	}

	var errs error
	lists := make([]domain.FilterList, len(cfg.FilterLists))
	for i, l := range cfg.FilterLists {
		lists[i] = l
		if !l.IsEnabled {
			continue
		}
		for _, r := range l.Rules {
			addRule(set, r, l.ID, now)
		}
		if strings.TrimSpace(l.URL) == "" {
			continue
		}
		parsed, version, err := e.loadList(ctx, l, force, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("list %s: %w", l.ID, err))
		}
		if parsed == nil {
			continue
		}
		set.Append(parsed)
		lists[i].Version = version
		lists[i].LastUpdated = now
	}
	cfg.FilterLists = lists

	for _, r := range cfg.CustomRules {
		addRule(set, r, "custom", now)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	patterns, err := pattern.Compile(set.Patterns)
	if err != nil {
		e.logger.Warn(map[string]any{"error": err.Error()}, "pattern_rules_skipped")
	}

	e.mu.RLock()
	version := e.version + 1
	e.mu.RUnlock()
	if err := e.repo.UpdateAll(set.Hosts, version, now.Unix()); err != nil {
		return nil, fmt.Errorf("rebuild host rules: %w", err)
	}

	block, allow := patterns.Len()
	return &buildResult{
		cfg:       cfg,
		patterns:  patterns,
		cosmetics: set.Cosmetics,
		counts: RuleCounts{
			Hosts:     len(set.Hosts),
			Patterns:  block + allow,
			Cosmetics: len(set.Cosmetics),
		},
		version: version,
	}, errs
}

// loadList fetches and parses one list. A stale cached copy is still parsed
// when the download fails, so both results may be non-nil.
func (e *Engine) loadList(ctx context.Context, l domain.FilterList, force bool, now time.Time) (*parsers.FilterSet, string, error) {
	data, fetchErr := e.fetcher.Fetch(ctx, l.URL, force)
	if data == nil {
		return nil, "", fetchErr
	}
	set, format, err := parsers.ParseAuto(bytes.NewReader(data), l.ID, e.logger, now)
	if err != nil {
		return nil, "", multierr.Append(fetchErr, err)
	}
	e.logger.Debug(map[string]any{"list": l.ID, "format": format.String(), "rules": set.Len()}, "list_loaded")
	return set, contentVersion(data), fetchErr
}

// contentVersion identifies list content by a short digest.
func contentVersion(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:6])
}

// addRule parses a configured rule into set. Redirect rules block the
// original request. Disabled and unparseable rules are ignored.
func addRule(set *parsers.FilterSet, r domain.FilterRule, source string, now time.Time) {
	if !r.IsEnabled {
		return
	}
	parsed, ok := parsers.ParseFilterLine(ruleLine(r), source+":"+r.ID, now)
	if ok {
		set.Append(&parsed)
	}
}

// ruleLine renders r in filter-list syntax, turning its domains and content
// types into "$" options.
func ruleLine(r domain.FilterRule) string {
	line := r.Line()
	var opts []string
	if len(r.Domains) > 0 {
		opts = append(opts, "domain="+strings.Join(r.Domains, "|"))
	}
	for _, t := range r.ContentTypes {
		opts = append(opts, strings.ToLower(strings.TrimSpace(t)))
	}
	if len(opts) > 0 && !strings.Contains(r.Pattern, "$") {
		line += "$" + strings.Join(opts, ",")
	}
	return line
}
