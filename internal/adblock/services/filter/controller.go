// Package filter implements the filter policy controller: the lifecycle state
// machine that mediates every call into the filtering engine and applies the
// fail-open and fail-closed rules of its policy table.
package filter

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/haukened/rr-adblock/internal/adblock/common/log"
	"github.com/haukened/rr-adblock/internal/adblock/domain"
)

// policyState is the controller's only shared mutable state.
type policyState struct {
	initialized bool
	enabled     bool
	initOptions *domain.InitOptions
}

// Controller owns the ad-blocker lifecycle. Create one per process and pass it
// to consumers. Gateway calls are made outside the state lock, so concurrent
// operations are not serialized and the last writer wins on the enabled flag.
type Controller struct {
	gateway Gateway
	logger  log.Logger
	timeout time.Duration

	mu    sync.RWMutex
	state policyState
}

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	Gateway Gateway
	Logger  log.Logger
	// GatewayTimeout bounds each gateway call when the caller's context has no
	// deadline. Zero waits indefinitely.
	GatewayTimeout time.Duration
}

// NewController builds a controller. It fails with NATIVE_MODULE_UNAVAILABLE
// when no gateway is provided.
func NewController(opts ControllerOptions) (*Controller, error) {
	if opts.Gateway == nil {
		return nil, domain.NewAdBlockerError(domain.KindNativeModuleUnavailable, domain.MsgGatewayUnavailable, nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Component("filter")
	}
	return &Controller{
		gateway: opts.Gateway,
		logger:  logger,
		timeout: opts.GatewayTimeout,
	}, nil
}

// gatewayContext applies the configured timeout to ctx.
func (c *Controller) gatewayContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Controller) checkPrecondition(p Policy) error {
	if p.RequiresInit && !c.IsInitialized() {
		return domain.NewAdBlockerError(domain.KindNotInitialized, p.NotInitMessage, nil)
	}
	return nil
}

// gatewayFailure applies the failure mode of op to err. A nil result means
// the failure was absorbed.
func (c *Controller) gatewayFailure(op Operation, err error) error {
	p := mustPolicy(op)
	switch p.OnError {
	case FailSurface:
		c.logger.Error(map[string]any{"op": string(op), "error": err}, "gateway_call_failed")
		return domain.NewAdBlockerError(p.Kind, p.Message, err)
	case FailOpen:
		c.logger.Error(map[string]any{"op": string(op), "error": err}, "gateway_call_failed_open")
		return nil
	case FailNull:
		c.logger.Warn(map[string]any{"op": string(op), "error": err}, "gateway_call_failed_null")
		return nil
	default:
		return err
	}
}

// capabilityAbsent applies the absence mode of op. A nil result means the
// operation succeeds; value reports whether a zero value is returned rather than nil.
func (c *Controller) capabilityAbsent(op Operation) (value bool, err error) {
	p := mustPolicy(op)
	switch p.OnAbsent {
	case AbsenceSucceed:
		c.logger.Warn(map[string]any{"op": string(op)}, "gateway_capability_unsupported")
		return true, nil
	case AbsenceSurface:
		c.logger.Error(map[string]any{"op": string(op)}, "gateway_capability_unsupported")
		return false, domain.NewAdBlockerError(p.Kind, p.Message, nil)
	default:
		c.logger.Warn(map[string]any{"op": string(op)}, "gateway_capability_unsupported")
		return false, nil
	}
}

// Init initializes the engine with opts. Retrying after a failure is always allowed.
func (c *Controller) Init(ctx context.Context, opts *domain.InitOptions) (bool, error) {
	gctx, cancel := c.gatewayContext(ctx)
	defer cancel()

	ok, err := c.gateway.Initialize(gctx, opts.Clone())
	if err != nil {
		c.markUninitialized()
		return false, c.gatewayFailure(OpInit, err)
	}
	if !ok {
		c.markUninitialized()
		c.logger.Error(nil, "adblocker_initialization_declined")
		return false, domain.NewAdBlockerError(domain.KindInitializationFailed, domain.MsgInitializationFailed, nil)
	}

	c.mu.Lock()
	c.state.initialized = true
	c.state.initOptions = opts.Clone()
	c.mu.Unlock()

	fields := map[string]any{"options": opts != nil}
	if opts != nil {
		fields["mode"] = string(opts.PerformanceMode.OrDefault())
		fields["custom_lists"] = len(opts.CustomFilterLists)
	}
	c.logger.Info(fields, "adblocker_initialized")
	return true, nil
}

// markUninitialized clears initialized and, with it, the cached enabled flag.
func (c *Controller) markUninitialized() {
	c.mu.Lock()
	c.state.initialized = false
	c.state.enabled = false
	c.mu.Unlock()
}

// Enable turns filtering on. The engine must be initialized.
func (c *Controller) Enable(ctx context.Context) error {
	if err := c.checkPrecondition(mustPolicy(OpEnable)); err != nil {
		return err
	}
	gctx, cancel := c.gatewayContext(ctx)
	defer cancel()
	if err := c.gateway.Enable(gctx); err != nil {
		return c.gatewayFailure(OpEnable, err)
	}
	c.mu.Lock()
	c.state.enabled = c.state.initialized
	c.mu.Unlock()
	c.logger.Info(nil, "adblocker_enabled")
	return nil
}

// Disable turns filtering off. It may be called in any state.
func (c *Controller) Disable(ctx context.Context) error {
	gctx, cancel := c.gatewayContext(ctx)
	defer cancel()
	if err := c.gateway.Disable(gctx); err != nil {
		return c.gatewayFailure(OpDisable, err)
	}
	c.mu.Lock()
	c.state.enabled = false
	c.mu.Unlock()
	c.logger.Info(nil, "adblocker_disabled")
	return nil
}

// Toggle flips the cached enabled flag through Enable or Disable and returns
// the resulting value.
func (c *Controller) Toggle(ctx context.Context) (bool, error) {
	var err error
	if c.IsEnabledCached() {
		err = c.Disable(ctx)
	} else {
		err = c.Enable(ctx)
	}
	if err != nil {
		return c.IsEnabledCached(), c.gatewayFailure(OpToggle, err)
	}
	return c.IsEnabledCached(), nil
}

// ValidateURL accepts only non-blank strings.
func ValidateURL(v any) (string, error) {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", domain.NewAdBlockerError(domain.KindFilterRequestFailed, domain.MsgInvalidURL, nil)
	}
	return s, nil
}

// FilterRequest reports whether url should be blocked. Only invalid input is an
// error; while filtering is inactive, or when the engine fails, the request is allowed.
func (c *Controller) FilterRequest(ctx context.Context, url string) (bool, error) {
	return c.FilterValue(ctx, url)
}

// FilterValue is FilterRequest for untyped input, such as a decoded JSON field.
func (c *Controller) FilterValue(ctx context.Context, v any) (bool, error) {
	url, err := ValidateURL(v)
	if err != nil {
		return false, err
	}

	c.mu.RLock()
	active := c.state.initialized && c.state.enabled
	c.mu.RUnlock()
	if !active {
		return false, nil
	}

	gctx, cancel := c.gatewayContext(ctx)
	defer cancel()
	blocked, err := c.gateway.FilterRequest(gctx, url)
	if err != nil {
		return false, c.gatewayFailure(OpFilterRequest, err)
	}
	return blocked, nil
}

// FilterRequestDetailed wraps FilterRequest in a FilterDecision. It never fails.
func (c *Controller) FilterRequestDetailed(ctx context.Context, url string) domain.FilterDecision {
	return c.DecideValue(ctx, url)
}

// DecideValue is FilterRequestDetailed for untyped input.
func (c *Controller) DecideValue(ctx context.Context, v any) domain.FilterDecision {
	blocked, err := c.FilterValue(ctx, v)
	if err != nil {
		return domain.ErrorDecision(err)
	}
	return domain.NewFilterDecision(blocked)
}

// IsEnabled queries the engine's live status, refreshes the cached flag and
// returns it. The result is false while the controller is uninitialized.
func (c *Controller) IsEnabled(ctx context.Context) (bool, error) {
	gctx, cancel := c.gatewayContext(ctx)
	defer cancel()
	enabled, err := c.gateway.IsEnabled(gctx)
	if err != nil {
		return false, c.gatewayFailure(OpIsEnabled, err)
	}
	c.mu.Lock()
	// an uninitialized controller is never enabled
	c.state.enabled = enabled && c.state.initialized
	enabled = c.state.enabled
	c.mu.Unlock()
	return enabled, nil
}

// UpdateFilters asks the engine to refresh its filter lists.
func (c *Controller) UpdateFilters(ctx context.Context) error {
	if err := c.checkPrecondition(mustPolicy(OpUpdateFilters)); err != nil {
		return err
	}
	gctx, cancel := c.gatewayContext(ctx)
	defer cancel()
	if err := c.gateway.UpdateFilters(gctx); err != nil {
		return c.gatewayFailure(OpUpdateFilters, err)
	}
	c.logger.Info(nil, "filters_updated")
	return nil
}

// GetConfig returns the engine configuration, or nil when the engine cannot
// provide one.
func (c *Controller) GetConfig(ctx context.Context) (*domain.FilterConfiguration, error) {
	if err := c.checkPrecondition(mustPolicy(OpGetConfig)); err != nil {
		return nil, err
	}
	gctx, cancel := c.gatewayContext(ctx)
	defer cancel()

	cfg, outcome, err := ReadConfig(gctx, c.gateway)
	switch outcome {
	case CapabilityUnsupported:
		value, err := c.capabilityAbsent(OpGetConfig)
		if value {
			return &domain.FilterConfiguration{}, nil
		}
		return nil, err
	case CapabilityFailed:
		return nil, c.gatewayFailure(OpGetConfig, err)
	default:
		return &cfg, nil
	}
}

// SetConfig forwards a partial configuration to the engine. A missing
// capability is logged and treated as success; call failures are returned as-is.
func (c *Controller) SetConfig(ctx context.Context, patch domain.FilterConfigPatch) error {
	if err := c.checkPrecondition(mustPolicy(OpSetConfig)); err != nil {
		return err
	}
	gctx, cancel := c.gatewayContext(ctx)
	defer cancel()

	outcome, err := WriteConfig(gctx, c.gateway, patch)
	switch outcome {
	case CapabilityUnsupported:
		_, err := c.capabilityAbsent(OpSetConfig)
		return err
	case CapabilityFailed:
		return c.gatewayFailure(OpSetConfig, err)
	default:
		return nil
	}
}

// Capabilities reports the optional capabilities of the gateway.
func (c *Controller) Capabilities() Capabilities {
	return CapabilityOf(c.gateway)
}

// IsInitialized reports the cached initialized flag.
func (c *Controller) IsInitialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.initialized
}

// IsEnabledCached reports the cached enabled flag without contacting the engine.
func (c *Controller) IsEnabledCached() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.enabled
}

// InitOptions returns a copy of the options of the last successful Init, or nil.
func (c *Controller) InitOptions() *domain.InitOptions {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.initOptions.Clone()
}

// Reset restores the initial state: uninitialized, disabled, no options.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.state = policyState{}
	c.mu.Unlock()
}

// Close resets the controller and closes the gateway when it holds resources.
func (c *Controller) Close() error {
	c.Reset()
	if closer, ok := c.gateway.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
