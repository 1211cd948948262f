package transport

import (
	"net/http"

	"github.com/haukened/rr-adblock/internal/adblock/domain"
	"github.com/haukened/rr-adblock/internal/adblock/services/defense"
	"github.com/haukened/rr-adblock/internal/adblock/services/filter"
)

type enabledResponse struct {
	Enabled bool `json:"enabled"`
}

type allowResponse struct {
	Allow bool `json:"allow"`
}

type stateResponse struct {
	Initialized  bool                `json:"initialized"`
	Enabled      bool                `json:"enabled"`
	Options      *domain.InitOptions `json:"options"`
	Capabilities filter.Capabilities `json:"capabilities"`
}

func (a *api) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) init(w http.ResponseWriter, r *http.Request) {
	var opts domain.InitOptions
	present, err := decodeBody(w, r, &opts)
	if err != nil {
		badRequest(w, err)
		return
	}
	var optsPtr *domain.InitOptions
	if present {
		optsPtr = &opts
	}
	ok, err := a.controller.Init(r.Context(), optsPtr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"initialized": ok})
}

func (a *api) enable(w http.ResponseWriter, r *http.Request) {
	if err := a.controller.Enable(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, enabledResponse{Enabled: a.controller.IsEnabledCached()})
}

func (a *api) disable(w http.ResponseWriter, r *http.Request) {
	if err := a.controller.Disable(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, enabledResponse{Enabled: a.controller.IsEnabledCached()})
}

func (a *api) toggle(w http.ResponseWriter, r *http.Request) {
	enabled, err := a.controller.Toggle(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, enabledResponse{Enabled: enabled})
}

func (a *api) status(w http.ResponseWriter, r *http.Request) {
	enabled, err := a.controller.IsEnabled(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, enabledResponse{Enabled: enabled})
}

func (a *api) state(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, stateResponse{
		Initialized:  a.controller.IsInitialized(),
		Enabled:      a.controller.IsEnabledCached(),
		Options:      a.controller.InitOptions(),
		Capabilities: a.controller.Capabilities(),
	})
}

// filterRequest accepts any JSON value as the url so that invalid input
// reaches the controller's validation.
func (a *api) filterRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL any `json:"url"`
	}
	if _, err := decodeBody(w, r, &body); err != nil {
		badRequest(w, err)
		return
	}
	blocked, err := a.controller.FilterValue(r.Context(), body.URL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.NewFilterDecision(blocked))
}

func (a *api) updateFilters(w http.ResponseWriter, r *http.Request) {
	if err := a.controller.UpdateFilters(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getConfig answers 204 when the engine cannot provide a configuration.
func (a *api) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := a.controller.GetConfig(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if cfg == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (a *api) setConfig(w http.ResponseWriter, r *http.Request) {
	var patch domain.FilterConfigPatch
	if _, err := decodeBody(w, r, &patch); err != nil {
		badRequest(w, err)
		return
	}
	if err := a.controller.SetConfig(r.Context(), patch); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) getStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.stats())
}

func (a *api) navigate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL string `json:"url"`
	}
	if _, err := decodeBody(w, r, &body); err != nil {
		badRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, allowResponse{Allow: a.defense.AllowNavigation(r.Context(), body.URL)})
}

func (a *api) resource(w http.ResponseWriter, r *http.Request) {
	var req defense.ResourceRequest
	if _, err := decodeBody(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.defense.InterceptResource(r.Context(), req))
}

func (a *api) popup(w http.ResponseWriter, r *http.Request) {
	var req defense.PopupRequest
	if _, err := decodeBody(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, allowResponse{Allow: a.defense.AllowPopup(r.Context(), req)})
}

func (a *api) redirect(w http.ResponseWriter, r *http.Request) {
	var body struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if _, err := decodeBody(w, r, &body); err != nil {
		badRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, allowResponse{Allow: a.defense.AllowRedirect(r.Context(), body.From, body.To)})
}

func (a *api) cleanupScript(w http.ResponseWriter, r *http.Request) {
	script, err := a.defense.CleanupScript(r.URL.Query().Get("host"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Message: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(script))
}
