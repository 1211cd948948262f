package defense

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/haukened/rr-adblock/internal/adblock/common/log"
)

func TestClassifyResource(t *testing.T) {
	tests := []struct {
		name string
		req  ResourceRequest
		want ResourceType
	}{
		{"explicit", ResourceRequest{URL: "https://x.example/a", Type: ResourceSubFrame}, ResourceSubFrame},
		{"accept html", ResourceRequest{URL: "https://x.example/a.js", Headers: map[string]string{"Accept": "text/html,application/xhtml+xml"}}, ResourceMainFrame},
		{"accept css", ResourceRequest{URL: "https://x.example/a", Headers: map[string]string{"accept": "text/css,*/*;q=0.1"}}, ResourceStylesheet},
		{"accept js", ResourceRequest{URL: "https://x.example/a", Headers: map[string]string{"Accept": "application/javascript"}}, ResourceScript},
		{"accept image", ResourceRequest{URL: "https://x.example/a", Headers: map[string]string{"Accept": "image/webp,*/*"}}, ResourceImage},
		{"xhr header", ResourceRequest{URL: "https://x.example/a", Headers: map[string]string{"X-Requested-With": "XMLHttpRequest"}}, ResourceXMLHTTPRequest},
		{"css suffix", ResourceRequest{URL: "https://x.example/site.CSS"}, ResourceStylesheet},
		{"js suffix", ResourceRequest{URL: "https://x.example/app.js"}, ResourceScript},
		{"image ext", ResourceRequest{URL: "https://x.example/banner.png?v=2"}, ResourceImage},
		{"api path", ResourceRequest{URL: "https://x.example/api/v1/items"}, ResourceXMLHTTPRequest},
		{"default", ResourceRequest{URL: "https://x.example/page"}, ResourceMainFrame},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyResource(tt.req))
		})
	}
}

func TestInterceptResource_Keywords(t *testing.T) {
	g := NewGuard(GuardOptions{Logger: log.NewNoopLogger()})
	ctx := context.Background()

	v := g.InterceptResource(ctx, ResourceRequest{URL: "https://cdn.example/js/ADS.js"})
	assert.True(t, v.Block)
	assert.Equal(t, ResourceScript, v.Type)
	assert.Equal(t, "keyword ads", v.Reason)
	if assert.NotNil(t, v.Response) {
		assert.Equal(t, http.StatusOK, v.Response.Status)
		assert.Equal(t, "*", v.Response.Headers["Access-Control-Allow-Origin"])
		assert.Empty(t, v.Response.Body)
	}

	v = g.InterceptResource(ctx, ResourceRequest{URL: "https://t.example/pixel.gif"})
	assert.True(t, v.Block)
	assert.Equal(t, ResourceImage, v.Type)

	v = g.InterceptResource(ctx, ResourceRequest{URL: "https://t.example/api/telemetry"})
	assert.True(t, v.Block)
	assert.Equal(t, ResourceXMLHTTPRequest, v.Type)

	v = g.InterceptResource(ctx, ResourceRequest{URL: "https://cdn.example/app.js"})
	assert.False(t, v.Block)
	assert.Nil(t, v.Response)
	assert.Equal(t, "allowed", v.Reason)

	v = g.InterceptResource(ctx, ResourceRequest{URL: "https://popup-malware.example/"})
	assert.False(t, v.Block, "main frames need an engine match")

	v = g.InterceptResource(ctx, ResourceRequest{URL: "  "})
	assert.False(t, v.Block)
}

func TestInterceptResource_EngineMatch(t *testing.T) {
	ctx := context.Background()
	checker := readyChecker("https://popup-malware.example/", "https://ads.example/style.css", "https://ads.example/landing")
	g := NewGuard(GuardOptions{Logger: log.NewNoopLogger(), Checker: checker})

	assert.True(t, g.InterceptResource(ctx, ResourceRequest{URL: "https://popup-malware.example/"}).Block)
	assert.False(t, g.InterceptResource(ctx, ResourceRequest{URL: "https://ads.example/landing"}).Block, "main frame without malicious marker stays")
	v := g.InterceptResource(ctx, ResourceRequest{URL: "https://ads.example/style.css"})
	assert.True(t, v.Block)
	assert.Equal(t, "engine rule", v.Reason)
}

func TestInterceptResource_PrefersMatcher(t *testing.T) {
	ctx := context.Background()
	matcher := &stubMatcher{block: true}
	g := NewGuard(GuardOptions{Logger: log.NewNoopLogger(), Checker: readyChecker(), Matcher: matcher})

	v := g.InterceptResource(ctx, ResourceRequest{URL: "https://w.example/frame", Type: ResourceSubFrame, DocumentURL: "https://site.example/"})
	assert.True(t, v.Block)
	assert.Equal(t, "subdocument", matcher.lastType)
	assert.Equal(t, "https://site.example/", matcher.lastDoc)

	g.InterceptResource(ctx, ResourceRequest{URL: "https://w.example/app.js"})
	assert.Equal(t, "script", matcher.lastType)

	idle := NewGuard(GuardOptions{Logger: log.NewNoopLogger(), Checker: &stubChecker{}, Matcher: matcher})
	assert.False(t, idle.InterceptResource(ctx, ResourceRequest{URL: "https://w.example/frame", Type: ResourceSubFrame}).Block)
}

type panickingMatcher struct{}

func (panickingMatcher) MatchResource(context.Context, string, string, string) bool {
	panic("matcher exploded")
}

func TestInterceptResource_PanicAllows(t *testing.T) {
	g := NewGuard(GuardOptions{Logger: log.NewNoopLogger(), Checker: readyChecker(), Matcher: panickingMatcher{}})
	v := g.InterceptResource(context.Background(), ResourceRequest{URL: "https://w.example/style.css"})
	assert.False(t, v.Block)
	assert.Equal(t, "error", v.Reason)
	assert.Equal(t, ResourceStylesheet, v.Type)
}
