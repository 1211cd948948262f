package defense

import (
	"context"
	"net/http"
	"strings"
)

// ResourceType classifies a sub-resource request.
type ResourceType string

const (
	ResourceMainFrame      ResourceType = "main_frame"
	ResourceSubFrame       ResourceType = "sub_frame"
	ResourceStylesheet     ResourceType = "stylesheet"
	ResourceScript         ResourceType = "script"
	ResourceImage          ResourceType = "image"
	ResourceXMLHTTPRequest ResourceType = "xmlhttprequest"
)

// filterType maps a resource type onto the "$" option names of filter lists.
func (t ResourceType) filterType() string {
	switch t {
	case ResourceMainFrame:
		return "document"
	case ResourceSubFrame:
		return "subdocument"
	default:
		return string(t)
	}
}

// ResourceRequest is a resource load the content view is about to make.
type ResourceRequest struct {
	URL         string            `json:"url"`
	Method      string            `json:"method"`
	Headers     map[string]string `json:"headers"`
	DocumentURL string            `json:"documentUrl"`
	// Type overrides classification when the content view knows it.
	Type ResourceType `json:"type,omitempty"`
}

// header looks up name case-insensitively.
func (r ResourceRequest) header(name string) string {
	if v, ok := r.Headers[name]; ok {
		return v
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// BlockedResponse is served in place of a blocked resource: an empty 200 so
// the page does not render error frames.
type BlockedResponse struct {
	Status      int               `json:"status"`
	ContentType string            `json:"contentType"`
	Headers     map[string]string `json:"headers"`
	Body        string            `json:"body"`
}

func newBlockedResponse() *BlockedResponse {
	return &BlockedResponse{
		Status:      http.StatusOK,
		ContentType: "text/plain; charset=utf-8",
		Headers: map[string]string{
			"Access-Control-Allow-Origin":  "*",
			"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
			"Access-Control-Allow-Headers": "*",
		},
	}
}

// Verdict is the outcome of InterceptResource.
type Verdict struct {
	Block    bool             `json:"block"`
	Type     ResourceType     `json:"type"`
	Reason   string           `json:"reason"`
	Response *BlockedResponse `json:"response,omitempty"`
}

// ClassifyResource derives the resource type from request headers, falling
// back to the shape of the URL. Unknown requests are treated as main frames.
func ClassifyResource(req ResourceRequest) ResourceType {
	if req.Type != "" {
		return req.Type
	}
	if accept := req.header("Accept"); accept != "" {
		switch {
		case strings.Contains(accept, "text/html"):
			return ResourceMainFrame
		case strings.Contains(accept, "text/css"):
			return ResourceStylesheet
		case strings.Contains(accept, "application/javascript"), strings.Contains(accept, "text/javascript"):
			return ResourceScript
		case strings.Contains(accept, "image/"):
			return ResourceImage
		}
	}
	if req.header("X-Requested-With") == "XMLHttpRequest" {
		return ResourceXMLHTTPRequest
	}

	lower := strings.ToLower(req.URL)
	switch {
	case strings.HasSuffix(lower, ".css"):
		return ResourceStylesheet
	case strings.HasSuffix(lower, ".js"), strings.Contains(lower, "javascript"):
		return ResourceScript
	case containsAny(lower, imageExtensions):
		return ResourceImage
	case strings.Contains(lower, "ajax"), strings.Contains(lower, "api/"):
		return ResourceXMLHTTPRequest
	}
	return ResourceMainFrame
}

// InterceptResource decides whether a sub-resource load proceeds. Scripts,
// images and XHR are also matched against keyword lists; main frames are only
// blocked when the engine blocks them and they look malicious. A panic while
// deciding allows the request.
func (g *Guard) InterceptResource(ctx context.Context, req ResourceRequest) (v Verdict) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error(map[string]any{"url": req.URL, "panic": r}, "intercept_resource_recovered")
			v = Verdict{Type: v.Type, Reason: "error"}
		}
	}()

	if strings.TrimSpace(req.URL) == "" {
		return Verdict{Reason: "empty url"}
	}
	rt := ClassifyResource(req)
	v = Verdict{Type: rt}

	lower := strings.ToLower(req.URL)
	switch rt {
	case ResourceMainFrame:
		if g.resourceBlocked(ctx, req, rt) && containsAny(lower, maliciousKeywords) {
			v.Block, v.Reason = true, "engine rule on malicious page"
		}
	case ResourceScript:
		v.Block, v.Reason = g.keywordOrEngine(ctx, req, rt, lower, scriptKeywords)
	case ResourceImage:
		// tracking pixel tokens are matched case-sensitively
		v.Block, v.Reason = g.keywordOrEngine(ctx, req, rt, req.URL, imageKeywords)
	case ResourceXMLHTTPRequest:
		v.Block, v.Reason = g.keywordOrEngine(ctx, req, rt, lower, xhrKeywords)
	default:
		if g.resourceBlocked(ctx, req, rt) {
			v.Block, v.Reason = true, "engine rule"
		}
	}

	if v.Block {
		v.Response = newBlockedResponse()
		g.logger.Info(map[string]any{"url": req.URL, "type": string(rt), "reason": v.Reason}, "resource_blocked")
	} else {
		if v.Reason == "" {
			v.Reason = "allowed"
		}
		g.logger.Debug(map[string]any{"url": req.URL, "type": string(rt)}, "resource_allowed")
	}
	return v
}

func (g *Guard) keywordOrEngine(ctx context.Context, req ResourceRequest, rt ResourceType, haystack string, keywords []string) (bool, string) {
	for _, k := range keywords {
		if strings.Contains(haystack, k) {
			return true, "keyword " + k
		}
	}
	if g.resourceBlocked(ctx, req, rt) {
		return true, "engine rule"
	}
	return false, ""
}

// resourceBlocked asks the engine about a sub-resource. The type-aware matcher
// is preferred; both paths require the controller to be ready.
func (g *Guard) resourceBlocked(ctx context.Context, req ResourceRequest, rt ResourceType) bool {
	if !g.checkerReady() {
		return false
	}
	if g.matcher != nil {
		return g.matcher.MatchResource(ctx, req.URL, req.DocumentURL, rt.filterType())
	}
	return g.checker.FilterRequestDetailed(ctx, req.URL).ShouldBlock
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
