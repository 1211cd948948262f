// Package engine is the concrete filtering engine behind the filter
// controller. Host rules live in the cache → bloom → bolt repository; URL
// pattern and element-hiding rules are compiled in memory.
package engine

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/haukened/rr-adblock/internal/adblock/common/clock"
	"github.com/haukened/rr-adblock/internal/adblock/common/log"
	"github.com/haukened/rr-adblock/internal/adblock/common/urlutil"
	"github.com/haukened/rr-adblock/internal/adblock/domain"
	"github.com/haukened/rr-adblock/internal/adblock/repos/profile"
	"github.com/haukened/rr-adblock/internal/adblock/repos/rules"
	"github.com/haukened/rr-adblock/internal/adblock/repos/rules/pattern"
	"github.com/haukened/rr-adblock/internal/adblock/services/defense"
	"github.com/haukened/rr-adblock/internal/adblock/services/filter"
)

// Error message constants for consistent error handling
const (
	errStoreRequired  = "rule store is required"
	errCacheRequired  = "decision cache is required"
	errBloomRequired  = "bloom factory is required"
	errNotInitialized = "engine is not initialized"
	errNoRules        = "no filter rules could be loaded"
	errRemoteNoFetch  = "remote list %s needs a fetcher"
)

// ListFetcher returns the raw content of a filter list source.
type ListFetcher interface {
	Fetch(ctx context.Context, src string, force bool) ([]byte, error)
}

// localFetcher reads local files only.
type localFetcher struct{}

func (localFetcher) Fetch(_ context.Context, src string, _ bool) ([]byte, error) {
	if isRemote(src) {
		return nil, fmt.Errorf(errRemoteNoFetch, src)
	}
	return os.ReadFile(src)
}

// Options configures an Engine.
type Options struct {
	// required parameters
	Store  rules.Store
	Cache  rules.DecisionCache
	Bloom  rules.BloomFactory
	FPRate float64
	// Lists are list sources loaded on every rebuild: URLs or file paths.
	Lists []string
	// ProfileDir is an optional directory of configuration profiles.
	ProfileDir string
	// DefaultMode applies when Initialize is given no performance mode.
	DefaultMode domain.PerformanceMode
	// Logging enables per-request debug logs.
	Logging bool
	// options to inject for testing purposes
	Fetcher ListFetcher
	Clock   clock.Clock
	Logger  log.Logger
}

// Engine implements filter.Gateway together with the configuration
// capabilities, and serves type-aware matching and selectors to the
// defense layer.
type Engine struct {
	repo        rules.Repository
	store       rules.Store
	fetcher     ListFetcher
	lists       []string
	profileDir  string
	defaultMode domain.PerformanceMode
	logDefault  bool
	clock       clock.Clock
	logger      log.Logger

	// buildMu serializes Initialize, UpdateFilters and SetConfig.
	buildMu sync.Mutex

	mu          sync.RWMutex
	initialized bool
	closed      bool
	logging     bool
	cfg         domain.FilterConfiguration
	whitelist   []string
	patterns    *pattern.Set
	cosmetics   []pattern.Cosmetic
	counts      RuleCounts
	version     uint64
}

var (
	_ filter.Gateway          = (*Engine)(nil)
	_ filter.ConfigReader     = (*Engine)(nil)
	_ filter.ConfigWriter     = (*Engine)(nil)
	_ defense.ResourceMatcher = (*Engine)(nil)
	_ defense.SelectorSource  = (*Engine)(nil)
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// NewEngine creates an uninitialized engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf(errStoreRequired)
	}
	if opts.Cache == nil {
		return nil, fmt.Errorf(errCacheRequired)
	}
	if opts.Bloom == nil {
		return nil, fmt.Errorf(errBloomRequired)
	}
	if opts.FPRate <= 0 || opts.FPRate >= 1 {
		opts.FPRate = 0.01
	}
	if opts.Fetcher == nil {
		opts.Fetcher = localFetcher{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Component("engine")
	}
	return &Engine{
		repo:        rules.NewRepository(opts.Store, opts.Cache, opts.Bloom, opts.FPRate),
		store:       opts.Store,
		fetcher:     opts.Fetcher,
		lists:       append([]string(nil), opts.Lists...),
		profileDir:  opts.ProfileDir,
		defaultMode: opts.DefaultMode.OrDefault(),
		logDefault:  opts.Logging,
		clock:       opts.Clock,
		logger:      opts.Logger,
		patterns:    &pattern.Set{},
	}, nil
}

// Initialize loads the built-in rules, every configured list, the lists in
// opts and the profile directory. It reports false when no rule at all could
// be loaded. Calling it again once initialized is a no-op.
func (e *Engine) Initialize(ctx context.Context, opts *domain.InitOptions) (bool, error) {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	e.mu.RLock()
	initialized, closed := e.initialized, e.closed
	e.mu.RUnlock()
	if initialized {
		e.logger.Debug(nil, "engine_already_initialized")
		return true, nil
	}
	if closed {
		return false, fmt.Errorf("engine is closed")
	}

	cfg, logging, err := e.initialConfig(opts)
	if err != nil {
		return false, err
	}

	b, err := e.build(ctx, cfg, false)
	if b == nil {
		return false, err
	}
	if b.counts.Total() == 0 {
		e.logger.Error(map[string]any{"error": err}, "engine_no_rules_loaded")
		return false, nil
	}

	e.mu.Lock()
	e.install(b)
	e.cfg.IsEnabled = b.cfg.IsEnabled
	e.initialized = true
	e.logging = logging
	e.mu.Unlock()

	if err != nil {
		e.logger.Warn(map[string]any{"error": err.Error()}, "engine_initialized_partially")
	}
	e.logger.Info(map[string]any{
		"hosts":     b.counts.Hosts,
		"patterns":  b.counts.Patterns,
		"cosmetics": b.counts.Cosmetics,
		"lists":     len(b.cfg.FilterLists),
		"mode":      string(b.cfg.PerformanceMode),
	}, "engine_initialized")
	return true, nil
}

// initialConfig combines defaults, profiles and init options. Init options win.
func (e *Engine) initialConfig(opts *domain.InitOptions) (domain.FilterConfiguration, bool, error) {
	cfg := domain.FilterConfiguration{PerformanceMode: e.defaultMode}
	logging := e.logDefault

	if e.profileDir != "" {
		patch, err := profile.LoadProfileDirectory(e.profileDir)
		if err != nil {
			return cfg, false, fmt.Errorf("load profiles: %w", err)
		}
		cfg = patch.Apply(cfg)
	}
	cfg.FilterLists = append(sourceLists(e.lists), cfg.FilterLists...)

	if opts != nil {
		if opts.PerformanceMode != "" {
			mode, err := domain.ParsePerformanceMode(string(opts.PerformanceMode))
			if err != nil {
				return cfg, false, err
			}
			cfg.PerformanceMode = mode
		}
		logging = logging || opts.EnableLogging
		cfg.FilterLists = append(cfg.FilterLists, sourceLists(opts.CustomFilterLists)...)
	}
	return cfg, logging, nil
}

// sourceLists turns list sources into enabled FilterList entries.
func sourceLists(srcs []string) []domain.FilterList {
	out := make([]domain.FilterList, 0, len(srcs))
	for _, src := range srcs {
		src = strings.TrimSpace(src)
		if src == "" {
			continue
		}
		out = append(out, domain.FilterList{ID: src, Name: src, URL: src, IsEnabled: true})
	}
	return out
}

// install swaps in a build result and keeps the live enabled flag. Callers
// hold e.mu.
func (e *Engine) install(b *buildResult) {
	enabled := e.cfg.IsEnabled
	e.cfg = b.cfg
	e.cfg.IsEnabled = enabled
	e.whitelist = canonicalDomains(b.cfg.WhitelistedDomains)
	e.patterns = b.patterns
	e.cosmetics = b.cosmetics
	e.counts = b.counts
	e.version = b.version
}

func canonicalDomains(in []string) []string {
	out := make([]string, 0, len(in))
	for _, d := range in {
		if d = urlutil.CanonicalHost(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// Enable turns filtering on.
func (e *Engine) Enable(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return fmt.Errorf(errNotInitialized)
	}
	e.cfg.IsEnabled = true
	return nil
}

// Disable turns filtering off. It never fails.
func (e *Engine) Disable(context.Context) error {
	e.mu.Lock()
	e.cfg.IsEnabled = false
	e.mu.Unlock()
	return nil
}

// IsEnabled reports whether the engine is initialized and filtering.
func (e *Engine) IsEnabled(context.Context) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.initialized && e.cfg.IsEnabled, nil
}

// UpdateFilters downloads every remote list again, bypassing the cache, and
// rebuilds all rules. Failures of individual lists are logged; the update
// only fails when no rules remain.
func (e *Engine) UpdateFilters(ctx context.Context) error {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	e.mu.RLock()
	initialized, cfg := e.initialized, e.cfg.Clone()
	e.mu.RUnlock()
	if !initialized {
		return fmt.Errorf(errNotInitialized)
	}

	b, err := e.build(ctx, cfg, true)
	if b == nil {
		return err
	}
	if b.counts.Total() == 0 {
		if err != nil {
			return fmt.Errorf("%s: %w", errNoRules, err)
		}
		return fmt.Errorf(errNoRules)
	}

	e.mu.Lock()
	e.install(b)
	e.mu.Unlock()

	if err != nil {
		e.logger.Warn(map[string]any{"error": err.Error()}, "filters_updated_partially")
	}
	e.logger.Info(map[string]any{"version": b.version, "rules": b.counts.Total()}, "filters_updated")
	return nil
}

// GetConfig returns a copy of the current configuration.
func (e *Engine) GetConfig(context.Context) (domain.FilterConfiguration, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.initialized {
		return domain.FilterConfiguration{}, fmt.Errorf(errNotInitialized)
	}
	return e.cfg.Clone(), nil
}

// SetConfig validates and applies patch. Changes to filter lists or custom
// rules rebuild the rule set; the other fields take effect immediately.
func (e *Engine) SetConfig(ctx context.Context, patch domain.FilterConfigPatch) error {
	if err := validate.Struct(patch); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	e.mu.RLock()
	initialized, cur := e.initialized, e.cfg.Clone()
	e.mu.RUnlock()
	if !initialized {
		return fmt.Errorf(errNotInitialized)
	}
	if patch.IsEmpty() {
		e.logger.Debug(nil, "engine_config_unchanged")
		return nil
	}
	next := patch.Apply(cur)

	if !patch.TouchesRules() {
		e.mu.Lock()
		if patch.IsEnabled != nil {
			e.cfg.IsEnabled = *patch.IsEnabled
		}
		e.cfg.PerformanceMode = next.PerformanceMode
		e.cfg.WhitelistedDomains = next.WhitelistedDomains
		e.whitelist = canonicalDomains(next.WhitelistedDomains)
		e.mu.Unlock()
		e.logger.Info(map[string]any{"mode": string(next.PerformanceMode), "whitelist": len(next.WhitelistedDomains)}, "engine_config_updated")
		return nil
	}

	b, err := e.build(ctx, next, false)
	if b == nil {
		return err
	}
	e.mu.Lock()
	e.install(b)
	if patch.IsEnabled != nil {
		e.cfg.IsEnabled = *patch.IsEnabled
	}
	e.mu.Unlock()
	if err != nil {
		e.logger.Warn(map[string]any{"error": err.Error()}, "engine_config_rebuilt_partially")
	}
	e.logger.Info(map[string]any{"version": b.version, "rules": b.counts.Total()}, "engine_config_rebuilt")
	return nil
}

// Stats is a snapshot of engine counters.
type Stats struct {
	Initialized bool            `json:"initialized"`
	Enabled     bool            `json:"enabled"`
	Mode        string          `json:"mode"`
	Version     uint64          `json:"version"`
	Rules       RuleCounts      `json:"rules"`
	Lists       int             `json:"lists"`
	Whitelisted int             `json:"whitelisted"`
	Repo        rules.RepoStats `json:"repo"`
}

// Stats returns rule counts, host cache counters and store metadata.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	s := Stats{
		Initialized: e.initialized,
		Enabled:     e.initialized && e.cfg.IsEnabled,
		Mode:        string(e.cfg.PerformanceMode.OrDefault()),
		Version:     e.version,
		Rules:       e.counts,
		Lists:       len(e.cfg.FilterLists),
		Whitelisted: len(e.whitelist),
	}
	e.mu.RUnlock()
	s.Repo = e.repo.RepoStats()
	return s
}

// Close releases the rule store. The engine cannot be initialized again.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.initialized = false
	e.cfg.IsEnabled = false
	return e.store.Close()
}
