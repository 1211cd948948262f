package defense

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupScript_Defaults(t *testing.T) {
	script, err := CleanupScript(ScriptOptions{})
	require.NoError(t, err)

	for _, want := range []string{
		"window.open = function()",
		"window.location.assign = function(url)",
		"window.location.replace = function(url)",
		`meta[http-equiv="refresh"]`,
		"new MutationObserver",
		"ReactNativeWebView",
		`"ins.adsbygoogle"`,
	} {
		assert.Contains(t, script, want)
	}
	assert.NotContains(t, script, "setInterval")
	assert.NotContains(t, script, "window.location.origin")
	assert.True(t, strings.HasSuffix(script, "true;\n"))
}

func TestCleanupScript_Options(t *testing.T) {
	script, err := CleanupScript(ScriptOptions{
		Selectors:                []string{".promo", " ", ".promo", "div[id*='ad']", "</script><b>"},
		Interval:                 1500 * time.Millisecond,
		AllowSameOriginRedirects: true,
	})
	require.NoError(t, err)
	assert.Contains(t, script, "setInterval(cleanAds, 1500)")
	assert.Contains(t, script, "window.location.origin")
	assert.Equal(t, 1, strings.Count(script, `".promo"`))
	assert.Equal(t, 1, strings.Count(script, `"div[id*='ad']"`))
	assert.NotContains(t, script, "</script>", "selectors are escaped for inline embedding")
}
