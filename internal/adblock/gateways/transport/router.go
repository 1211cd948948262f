package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/haukened/rr-adblock/internal/adblock/common/log"
	"github.com/haukened/rr-adblock/internal/adblock/domain"
	"github.com/haukened/rr-adblock/internal/adblock/services/defense"
	"github.com/haukened/rr-adblock/internal/adblock/services/filter"
)

// Controller is the subset of the filter controller served over HTTP.
type Controller interface {
	Init(ctx context.Context, opts *domain.InitOptions) (bool, error)
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
	Toggle(ctx context.Context) (bool, error)
	IsEnabled(ctx context.Context) (bool, error)
	FilterValue(ctx context.Context, v any) (bool, error)
	UpdateFilters(ctx context.Context) error
	GetConfig(ctx context.Context) (*domain.FilterConfiguration, error)
	SetConfig(ctx context.Context, patch domain.FilterConfigPatch) error
	Capabilities() filter.Capabilities
	IsInitialized() bool
	IsEnabledCached() bool
	InitOptions() *domain.InitOptions
}

// Defense is the content-view defense layer served over HTTP.
type Defense interface {
	AllowNavigation(ctx context.Context, target string) bool
	InterceptResource(ctx context.Context, req defense.ResourceRequest) defense.Verdict
	AllowPopup(ctx context.Context, req defense.PopupRequest) bool
	AllowRedirect(ctx context.Context, from, to string) bool
	CleanupScript(host string) (string, error)
}

// RouterOptions wires the HTTP API.
type RouterOptions struct {
	Controller Controller
	Defense    Defense
	// Stats is optional; when set it backs GET /v1/stats.
	Stats  func() any
	Logger log.Logger
}

type api struct {
	controller Controller
	defense    Defense
	stats      func() any
	logger     log.Logger
}

// NewRouter builds the chi router for the content-view API.
func NewRouter(opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.Component("http")
	}
	a := &api{controller: opts.Controller, defense: opts.Defense, stats: opts.Stats, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", a.healthz)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/init", a.init)
		r.Post("/enable", a.enable)
		r.Post("/disable", a.disable)
		r.Post("/toggle", a.toggle)
		r.Get("/status", a.status)
		r.Get("/state", a.state)
		r.Post("/filter", a.filterRequest)
		r.Post("/update", a.updateFilters)
		r.Get("/config", a.getConfig)
		r.Patch("/config", a.setConfig)
		if a.stats != nil {
			r.Get("/stats", a.getStats)
		}
		if a.defense != nil {
			r.Post("/navigate", a.navigate)
			r.Post("/resource", a.resource)
			r.Post("/popup", a.popup)
			r.Post("/redirect", a.redirect)
			r.Get("/cleanup.js", a.cleanupScript)
		}
	})
	return r
}

// requestLogger logs one debug line per request.
func requestLogger(logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug(map[string]any{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
			}, "http_request")
		})
	}
}
