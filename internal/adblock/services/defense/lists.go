package defense

// DefaultAdDomains are blocked on navigation regardless of engine state.
// Entries are matched as substrings of the target URL.
var DefaultAdDomains = []string{
	"doubleclick.net",
	"googlesyndication.com",
	"adservice.google.com",
	"ads.yahoo.com",
	"taboola.com",
	"outbrain.com",
	"googletagmanager.com",
	"moatads.com",
	"facebook.com/tr",
	"google-analytics.com",
}

// DefaultSelectors are removed from the content view by the cleanup script.
var DefaultSelectors = []string{
	"iframe[src*='ads']",
	"iframe[id*='google_ads']",
	"div[class*='ad']",
	"div[id*='ad']",
	"ins.adsbygoogle",
	"div[class*='sponsor']",
	"div[class*='popup']",
}

var (
	scriptKeywords = []string{
		"ads", "analytics", "tracking", "doubleclick",
		"googletagmanager", "facebook.com/tr", "google-analytics",
	}
	imageKeywords     = []string{"1x1", "pixel", "beacon"}
	xhrKeywords       = []string{"analytics", "tracking", "metrics", "telemetry", "collect"}
	maliciousKeywords = []string{"malware", "phishing", "scam", "popup"}
	imageExtensions   = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg"}
)
