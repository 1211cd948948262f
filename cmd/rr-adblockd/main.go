// Package main is the entry point for rr-adblockd, the request-filtering
// daemon consumed by content views.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haukened/rr-adblock/internal/adblock/common/clock"
	"github.com/haukened/rr-adblock/internal/adblock/common/log"
	"github.com/haukened/rr-adblock/internal/adblock/config"
	"github.com/haukened/rr-adblock/internal/adblock/domain"
	"github.com/haukened/rr-adblock/internal/adblock/gateways/engine"
	"github.com/haukened/rr-adblock/internal/adblock/gateways/transport"
	"github.com/haukened/rr-adblock/internal/adblock/repos/rules/bloom"
	"github.com/haukened/rr-adblock/internal/adblock/repos/rules/bolt"
	"github.com/haukened/rr-adblock/internal/adblock/repos/rules/lru"
	"github.com/haukened/rr-adblock/internal/adblock/services/defense"
	"github.com/haukened/rr-adblock/internal/adblock/services/filter"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "rr-adblockd"

	defaultShutdownTimeout = 10 * time.Second
)

// Application holds all the components of the daemon
type Application struct {
	config     *config.AppConfig
	controller *filter.Controller
	guard      *defense.Guard
	transport  transport.ServerTransport
}

var (
	initOnStart bool
	checkMode   string
	scriptHost  string
	jsonOutput  bool
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Ad and tracker request filtering daemon",
	Long: `rr-adblockd answers block/allow decisions for content views over HTTP.
It loads adblock-style filter lists, guards navigation, popups and
redirects, and serves the cleanup script injected into pages.

Configuration comes from ADBLOCK_* environment variables.`,
	Version:       version,
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API until interrupted",
	RunE:  runServe,
}

var checkCmd = &cobra.Command{
	Use:   "check URL...",
	Short: "Print the filter decision for each URL",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheck,
}

var scriptCmd = &cobra.Command{
	Use:   "script",
	Short: "Print the content-view cleanup script",
	RunE:  runScript,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run:   runVersion,
}

func init() {
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().BoolVar(&initOnStart, "init", false, "Initialize and enable filtering at startup")
	}
	checkCmd.Flags().StringVar(&checkMode, "mode", "", "Performance mode (balanced, aggressive, minimal)")
	scriptCmd.Flags().StringVar(&scriptHost, "host", "", "Page host whose element-hiding rules are included")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(scriptCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

// loadConfig loads configuration and configures global logging.
func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if err := log.Configure(cfg.Env, cfg.Log.Level); err != nil {
		return nil, fmt.Errorf("logging configuration error: %w", err)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log.Info(map[string]any{
		"version":  version,
		"env":      cfg.Env,
		"addr":     cfg.Server.Addr,
		"db":       cfg.Engine.DB,
		"lists":    len(cfg.Engine.Lists),
		"profiles": cfg.Engine.Profiles,
		"mode":     cfg.Engine.Mode,
	}, "starting_rr_adblockd")

	app, err := buildApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if initOnStart {
		if err := app.start(ctx); err != nil {
			_ = app.controller.Close()
			return err
		}
	}
	if err := app.Run(ctx); err != nil {
		return err
	}
	log.Info(nil, "rr_adblockd_stopped")
	return nil
}

// start initializes the controller and enables filtering.
func (app *Application) start(ctx context.Context) error {
	opts := &domain.InitOptions{
		EnableLogging:   app.config.Engine.Logging,
		PerformanceMode: domain.PerformanceMode(app.config.Engine.Mode),
	}
	if _, err := app.controller.Init(ctx, opts); err != nil {
		return err
	}
	return app.controller.Enable(ctx)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if checkMode != "" {
		mode, err := domain.ParsePerformanceMode(checkMode)
		if err != nil {
			return err
		}
		cfg.Engine.Mode = string(mode)
	}
	app, err := buildApplication(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = app.controller.Close() }()

	ctx := cmd.Context()
	if err := app.start(ctx); err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, url := range args {
		out := struct {
			URL string `json:"url"`
			domain.FilterDecision
			Navigation bool `json:"navigationAllowed"`
		}{
			URL:            url,
			FilterDecision: app.controller.FilterRequestDetailed(ctx, url),
			Navigation:     app.guard.AllowNavigation(ctx, url),
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
	return nil
}

// runScript prints the cleanup script. Engine selectors are included when a
// host is given.
func runScript(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	var script string
	if scriptHost == "" {
		script, err = defense.CleanupScript(scriptOptions(cfg))
	} else {
		var app *Application
		app, err = buildApplication(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = app.controller.Close() }()
		if err = app.start(cmd.Context()); err != nil {
			return err
		}
		script, err = app.guard.CleanupScript(scriptHost)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), script)
	return err
}

func runVersion(cmd *cobra.Command, _ []string) {
	if jsonOutput {
		_ = json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"name": appName, "version": version})
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", appName, version)
}

func scriptOptions(cfg *config.AppConfig) defense.ScriptOptions {
	return defense.ScriptOptions{
		Interval:                 cfg.Defense.Interval,
		AllowSameOriginRedirects: cfg.Defense.SameOrigin,
	}
}

// buildApplication constructs all components and wires them together
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	clk := clock.RealClock{}

	eng, err := buildEngine(cfg, clk)
	if err != nil {
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}

	controller, err := filter.NewController(filter.ControllerOptions{
		Gateway:        eng,
		Logger:         log.Component("filter"),
		GatewayTimeout: cfg.Controller.Timeout,
	})
	if err != nil {
		_ = eng.Close()
		return nil, fmt.Errorf("failed to build controller: %w", err)
	}

	guard := defense.NewGuard(defense.GuardOptions{
		Checker:                  controller,
		Matcher:                  eng,
		Selectors:                eng,
		Logger:                   log.Component("defense"),
		TrustedOrigins:           cfg.Defense.Origins,
		ExtraDomains:             cfg.Defense.Domains,
		AllowSameOriginRedirects: cfg.Defense.SameOrigin,
		Script:                   scriptOptions(cfg),
	})

	router := transport.NewRouter(transport.RouterOptions{
		Controller: controller,
		Defense:    guard,
		Stats:      func() any { return eng.Stats() },
		Logger:     log.Component("http"),
	})

	return &Application{
		config:     cfg,
		controller: controller,
		guard:      guard,
		transport:  transport.NewHTTPTransport(cfg.Server.Addr, router, log.Component("transport")),
	}, nil
}

// buildEngine opens the rule store and builds the filtering engine.
func buildEngine(cfg *config.AppConfig, clk clock.Clock) (*engine.Engine, error) {
	store, err := bolt.New(cfg.Engine.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open rule store: %w", err)
	}
	cache, err := lru.New(cfg.Engine.Cache.Size)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create decision cache: %w", err)
	}
	fetcher, err := engine.NewFetcher(engine.FetcherOptions{
		Dir:     cfg.Engine.Fetch.Dir,
		Timeout: cfg.Engine.Fetch.Timeout,
		MaxAge:  cfg.Engine.Fetch.MaxAge,
		Clock:   clk,
		Logger:  log.Component("fetcher"),
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create list fetcher: %w", err)
	}

	log.Info(map[string]any{
		"db":         cfg.Engine.DB,
		"cache_size": cfg.Engine.Cache.Size,
		"bloom_fp":   cfg.Engine.Bloom.FP,
		"fetch_dir":  cfg.Engine.Fetch.Dir,
	}, "engine_configured")

	eng, err := engine.NewEngine(engine.Options{
		Store:       store,
		Cache:       cache,
		Bloom:       bloom.NewFactory(),
		FPRate:      cfg.Engine.Bloom.FP,
		Lists:       cfg.Engine.Lists,
		ProfileDir:  cfg.Engine.Profiles,
		DefaultMode: domain.PerformanceMode(cfg.Engine.Mode),
		Logging:     cfg.Engine.Logging,
		Fetcher:     fetcher,
		Clock:       clk,
		Logger:      log.Component("engine"),
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return eng, nil
}

// Run starts the HTTP transport and blocks until ctx is cancelled
func (app *Application) Run(ctx context.Context) error {
	if err := app.transport.Start(ctx); err != nil {
		_ = app.controller.Close()
		return fmt.Errorf("failed to start HTTP transport: %w", err)
	}

	log.Info(map[string]any{
		"address":   app.transport.Address(),
		"transport": "http",
	}, "rr_adblockd_started")

	<-ctx.Done()
	log.Info(nil, "shutdown_initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		if err := app.transport.Stop(); err != nil {
			log.Warn(map[string]any{"error": err.Error()}, "transport_shutdown_error")
		}
		done <- app.controller.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to close engine: %w", err)
		}
		log.Info(nil, "graceful_shutdown_completed")
		return nil
	case <-shutdownCtx.Done():
		log.Warn(map[string]any{"timeout": defaultShutdownTimeout.String()}, "shutdown_timeout_exceeded")
		return fmt.Errorf("shutdown timeout")
	}
}
