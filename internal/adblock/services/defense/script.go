package defense

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// ScriptOptions configures the cleanup script.
type ScriptOptions struct {
	// Selectors are added to DefaultSelectors.
	Selectors []string
	// Interval adds a periodic cleanup pass on top of the mutation observer. Zero disables it.
	Interval time.Duration
	// AllowSameOriginRedirects keeps same-origin location changes working.
	AllowSameOriginRedirects bool
}

type scriptData struct {
	SelectorsJSON string
	IntervalMS    int64
	SameOrigin    bool
}

var cleanupTemplate = template.Must(template.New("cleanup").Parse(`(function() {
  var post = function(msg) {
    if (window.ReactNativeWebView && window.ReactNativeWebView.postMessage) {
      window.ReactNativeWebView.postMessage(msg);
    }
  };
  var originalLog = console.log;
  console.log = function() {
    var args = Array.prototype.slice.call(arguments);
    post('[WebView LOG] ' + JSON.stringify(args));
    originalLog.apply(console, args);
  };

  window.open = function() {
    console.log('blocked window.open');
    return null;
  };

  var sameOrigin = function(url) {
    {{- if .SameOrigin}}
    try { return new URL(url, window.location.href).origin === window.location.origin; } catch (e) { return false; }
    {{- else}}
    return false;
    {{- end}}
  };
  var go = window.location.assign.bind(window.location);
  var swap = window.location.replace.bind(window.location);
  try {
    Object.defineProperty(window.location, 'href', {
      set: function(url) {
        if (sameOrigin(url)) { go(url); return; }
        console.log('blocked location.href change to: ' + url);
      }
    });
  } catch (e) {}
  window.location.assign = function(url) {
    if (sameOrigin(url)) { go(url); return; }
    console.log('blocked location.assign to: ' + url);
  };
  window.location.replace = function(url) {
    if (sameOrigin(url)) { swap(url); return; }
    console.log('blocked location.replace to: ' + url);
  };

  document.querySelectorAll('meta[http-equiv="refresh"]').forEach(function(el) {
    console.log('removed meta refresh');
    el.remove();
  });

  var selectors = {{.SelectorsJSON}};
  function cleanAds() {
    selectors.forEach(function(selector) {
      try {
        document.querySelectorAll(selector).forEach(function(el) { el.remove(); });
      } catch (e) {}
    });
  }
  cleanAds();

  var observer = new MutationObserver(function() { cleanAds(); });
  var watch = function() {
    observer.observe(document.documentElement || document.body, { childList: true, subtree: true });
  };
  if (document.documentElement || document.body) { watch(); } else { document.addEventListener('DOMContentLoaded', watch); }
  {{- if gt .IntervalMS 0}}
  setInterval(cleanAds, {{.IntervalMS}});
  {{- end}}
})();
true;
`))

// CleanupScript renders the script injected into content views. It overrides
// window.open and location changes, removes meta refreshes, and removes
// elements matching the selectors on load and on every DOM mutation.
func CleanupScript(opts ScriptOptions) (string, error) {
	selectors := make([]string, 0, len(DefaultSelectors)+len(opts.Selectors))
	seen := make(map[string]struct{}, cap(selectors))
	for _, s := range append(append([]string(nil), DefaultSelectors...), opts.Selectors...) {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		selectors = append(selectors, s)
	}
	encoded, err := json.Marshal(selectors)
	if err != nil {
		return "", fmt.Errorf("encode selectors: %w", err)
	}

	var b strings.Builder
	err = cleanupTemplate.Execute(&b, scriptData{
		SelectorsJSON: string(encoded),
		IntervalMS:    opts.Interval.Milliseconds(),
		SameOrigin:    opts.AllowSameOriginRedirects,
	})
	if err != nil {
		return "", fmt.Errorf("render cleanup script: %w", err)
	}
	return b.String(), nil
}
