package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-adblock/internal/adblock/common/log"
	"github.com/haukened/rr-adblock/internal/adblock/domain"
	"github.com/haukened/rr-adblock/internal/adblock/services/defense"
	"github.com/haukened/rr-adblock/internal/adblock/services/filter"
)

// stubGateway blocks hosts containing "ads." and keeps its config in memory.
type stubGateway struct {
	mu        sync.Mutex
	enabled   bool
	enableErr error
	cfg       domain.FilterConfiguration
}

func (g *stubGateway) Initialize(context.Context, *domain.InitOptions) (bool, error) { return true, nil }
func (g *stubGateway) Enable(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.enableErr != nil {
		return g.enableErr
	}
	g.enabled = true
	return nil
}
func (g *stubGateway) Disable(context.Context) error {
	g.mu.Lock()
	g.enabled = false
	g.mu.Unlock()
	return nil
}
func (g *stubGateway) FilterRequest(_ context.Context, url string) (bool, error) {
	return strings.Contains(url, "ads."), nil
}
func (g *stubGateway) IsEnabled(context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled, nil
}
func (g *stubGateway) UpdateFilters(context.Context) error { return errors.New("mirror unreachable") }
func (g *stubGateway) GetConfig(context.Context) (domain.FilterConfiguration, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cfg.Clone(), nil
}
func (g *stubGateway) SetConfig(_ context.Context, p domain.FilterConfigPatch) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg = p.Apply(g.cfg)
	return nil
}

func newTestServer(t *testing.T, gw filter.Gateway) *httptest.Server {
	t.Helper()
	ctrl, err := filter.NewController(filter.ControllerOptions{Gateway: gw, Logger: log.NewNoopLogger()})
	require.NoError(t, err)
	guard := defense.NewGuard(defense.GuardOptions{
		Checker:        ctrl,
		Logger:         log.NewNoopLogger(),
		TrustedOrigins: []string{"https://www.moviehive.pro"},
	})
	srv := httptest.NewServer(NewRouter(RouterOptions{
		Controller: ctrl,
		Defense:    guard,
		Stats:      func() any { return map[string]int{"rules": 3} },
		Logger:     log.NewNoopLogger(),
	}))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v))
	return v
}

func TestRouter_Lifecycle(t *testing.T) {
	srv := newTestServer(t, &stubGateway{})

	resp, body := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	resp, body = do(t, srv, http.MethodPost, "/v1/enable", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	e := decode[errorBody](t, body)
	assert.Equal(t, domain.KindNotInitialized, e.Kind)
	assert.Equal(t, domain.MsgEnableNotInit, e.Message)

	resp, body = do(t, srv, http.MethodPost, "/v1/filter", `{"url":"https://ads.example/x"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[domain.FilterDecision](t, body).ShouldBlock, "inactive controller allows")

	resp, body = do(t, srv, http.MethodPost, "/v1/init", `{"performanceMode":"aggressive"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"initialized":true}`, string(body))

	resp, body = do(t, srv, http.MethodPost, "/v1/enable", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[enabledResponse](t, body).Enabled)

	resp, body = do(t, srv, http.MethodPost, "/v1/filter", `{"url":"https://ads.example/x"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	d := decode[domain.FilterDecision](t, body)
	assert.True(t, d.ShouldBlock)
	assert.Equal(t, domain.ReasonMatchedRule, d.Reason)

	_, body = do(t, srv, http.MethodGet, "/v1/status", "")
	assert.True(t, decode[enabledResponse](t, body).Enabled)

	_, body = do(t, srv, http.MethodGet, "/v1/state", "")
	st := decode[stateResponse](t, body)
	assert.True(t, st.Initialized)
	assert.True(t, st.Enabled)
	require.NotNil(t, st.Options)
	assert.Equal(t, domain.PerformanceAggressive, st.Options.PerformanceMode)
	assert.True(t, st.Capabilities.ReadConfig)
	assert.True(t, st.Capabilities.WriteConfig)

	_, body = do(t, srv, http.MethodPost, "/v1/toggle", "")
	assert.False(t, decode[enabledResponse](t, body).Enabled)
	_, body = do(t, srv, http.MethodPost, "/v1/disable", "")
	assert.False(t, decode[enabledResponse](t, body).Enabled)

	_, body = do(t, srv, http.MethodGet, "/v1/stats", "")
	assert.JSONEq(t, `{"rules":3}`, string(body))
}

func TestRouter_InitWithoutBody(t *testing.T) {
	srv := newTestServer(t, &stubGateway{})
	resp, _ := do(t, srv, http.MethodPost, "/v1/init", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, body := do(t, srv, http.MethodGet, "/v1/state", "")
	assert.Nil(t, decode[stateResponse](t, body).Options)
}

func TestRouter_FilterValidation(t *testing.T) {
	srv := newTestServer(t, &stubGateway{})
	for _, payload := range []string{`{"url":42}`, `{"url":"   "}`, `{}`} {
		resp, body := do(t, srv, http.MethodPost, "/v1/filter", payload)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, payload)
		e := decode[errorBody](t, body)
		assert.Equal(t, domain.KindFilterRequestFailed, e.Kind, payload)
		assert.Equal(t, domain.MsgInvalidURL, e.Message, payload)
	}

	resp, body := do(t, srv, http.MethodPost, "/v1/filter", `{"url":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, decode[errorBody](t, body).Kind)
}

func TestRouter_GatewayFailures(t *testing.T) {
	gw := &stubGateway{enableErr: errors.New("engine offline")}
	srv := newTestServer(t, gw)
	do(t, srv, http.MethodPost, "/v1/init", "")

	resp, body := do(t, srv, http.MethodPost, "/v1/enable", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, domain.KindEnableFailed, decode[errorBody](t, body).Kind)

	resp, body = do(t, srv, http.MethodPost, "/v1/update", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, domain.KindUpdateFiltersFailed, decode[errorBody](t, body).Kind)
}

func TestRouter_Config(t *testing.T) {
	srv := newTestServer(t, &stubGateway{})

	resp, _ := do(t, srv, http.MethodGet, "/v1/config", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	do(t, srv, http.MethodPost, "/v1/init", "")
	resp, _ = do(t, srv, http.MethodPatch, "/v1/config", `{"whitelistedDomains":["example.com"],"performanceMode":"minimal"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := do(t, srv, http.MethodGet, "/v1/config", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	cfg := decode[domain.FilterConfiguration](t, body)
	assert.Equal(t, []string{"example.com"}, cfg.WhitelistedDomains)
	assert.Equal(t, domain.PerformanceMinimal, cfg.PerformanceMode)

	resp, _ = do(t, srv, http.MethodPatch, "/v1/config", `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_ConfigUnsupported(t *testing.T) {
	srv := newTestServer(t, &onlyGateway{})
	do(t, srv, http.MethodPost, "/v1/init", "")
	resp, _ := do(t, srv, http.MethodGet, "/v1/config", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, srv, http.MethodPatch, "/v1/config", `{"whitelistedDomains":["example.com"]}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

// onlyGateway implements nothing beyond filter.Gateway.
type onlyGateway struct{}

func (onlyGateway) Initialize(context.Context, *domain.InitOptions) (bool, error) { return true, nil }
func (onlyGateway) Enable(context.Context) error                                    { return nil }
func (onlyGateway) Disable(context.Context) error                                   { return nil }
func (onlyGateway) FilterRequest(context.Context, string) (bool, error)             { return false, nil }
func (onlyGateway) IsEnabled(context.Context) (bool, error)                         { return false, nil }
func (onlyGateway) UpdateFilters(context.Context) error                             { return nil }

func TestRouter_Defense(t *testing.T) {
	srv := newTestServer(t, &stubGateway{})

	_, body := do(t, srv, http.MethodPost, "/v1/navigate", `{"url":"https://www.moviehive.pro/embed"}`)
	assert.True(t, decode[allowResponse](t, body).Allow)
	_, body = do(t, srv, http.MethodPost, "/v1/navigate", `{"url":"https://evil.example/"}`)
	assert.False(t, decode[allowResponse](t, body).Allow)

	_, body = do(t, srv, http.MethodPost, "/v1/popup", `{"url":"https://www.moviehive.pro/x","userGesture":true}`)
	assert.False(t, decode[allowResponse](t, body).Allow)

	_, body = do(t, srv, http.MethodPost, "/v1/redirect", `{"from":"https://a.example/","to":"https://a.example/2"}`)
	assert.False(t, decode[allowResponse](t, body).Allow)

	_, body = do(t, srv, http.MethodPost, "/v1/resource", `{"url":"https://cdn.example/pixel.gif"}`)
	v := decode[defense.Verdict](t, body)
	assert.True(t, v.Block)
	assert.Equal(t, defense.ResourceImage, v.Type)
	require.NotNil(t, v.Response)
	assert.Equal(t, http.StatusOK, v.Response.Status)

	resp, body := do(t, srv, http.MethodGet, "/v1/cleanup.js?host=www.moviehive.pro", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/javascript; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), "MutationObserver")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(domain.KindNotInitialized))
	assert.Equal(t, http.StatusBadRequest, statusFor(domain.KindFilterRequestFailed))
	for _, k := range []domain.ErrorKind{domain.KindInitializationFailed, domain.KindEnableFailed, domain.KindStatusCheckFailed, domain.KindNativeModuleUnavailable} {
		assert.Equal(t, http.StatusBadGateway, statusFor(k), k)
	}
}

func TestWriteError_Untyped(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("boom"))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"message":"boom"}`, rec.Body.String())
}
