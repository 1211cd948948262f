package config

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// AppConfig holds configuration values parsed from defaults and environment variables.
//
// Environment variables use the prefix "ADBLOCK_" and "_" as the nesting
// separator, so ADBLOCK_ENGINE_CACHE_SIZE sets engine.cache.size.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	Log        LoggingConfig    `koanf:"log" validate:"required"`
	Server     ServerConfig     `koanf:"server" validate:"required"`
	Engine     EngineConfig     `koanf:"engine" validate:"required"`
	Controller ControllerConfig `koanf:"controller"`
	Defense    DefenseConfig    `koanf:"defense"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", or "error".
	Level string `koanf:"level" validate:"required,oneof=debug info warn error"`
}

// ServerConfig configures the HTTP surface used by content views.
type ServerConfig struct {
	// Addr is the listen address in host:port form; the host may be empty.
	Addr string `koanf:"addr" validate:"required,host_port"`
}

// CacheConfig sizes an in-memory cache.
type CacheConfig struct {
	Size int `koanf:"size" validate:"required,gte=1"`
}

// BloomConfig tunes the negative pre-filter in front of the rule store.
type BloomConfig struct {
	// FP is the target false-positive rate.
	FP float64 `koanf:"fp" validate:"gt=0,lt=1"`
}

// FetchConfig controls downloading and caching of remote filter lists.
type FetchConfig struct {
	// Dir holds cached copies of remote lists.
	Dir string `koanf:"dir" validate:"required"`
	// Timeout bounds a single list download.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
	// MaxAge is how long a cached list is reused before it is downloaded again.
	MaxAge time.Duration `koanf:"maxage" validate:"gt=0"`
}

// EngineConfig configures the concrete filtering engine.
type EngineConfig struct {
	// DB is the bbolt file backing the host-rule index.
	DB string `koanf:"db" validate:"required"`
	// Lists are filter list sources: http(s) URLs or absolute file paths.
	Lists []string `koanf:"lists" validate:"omitempty,dive,list_source"`
	// Profiles is an optional directory of yaml/json/toml configuration profiles.
	Profiles string `koanf:"profiles"`
	// Mode is the default performance mode when Init supplies none.
	Mode string `koanf:"mode" validate:"required,oneof=balanced aggressive minimal"`
	// Logging enables per-request engine debug logs.
	Logging bool `koanf:"logging"`

	Cache CacheConfig `koanf:"cache" validate:"required"`
	Bloom BloomConfig `koanf:"bloom"`
	Fetch FetchConfig `koanf:"fetch" validate:"required"`
}

// ControllerConfig configures the filter policy controller.
type ControllerConfig struct {
	// Timeout bounds each engine call. Zero waits indefinitely.
	Timeout time.Duration `koanf:"timeout" validate:"gte=0"`
}

// DefenseConfig configures the content-view defense layer.
type DefenseConfig struct {
	// Origins are the trusted origins navigation may stay within. Empty disables the check.
	Origins []string `koanf:"origins" validate:"omitempty,dive,origin"`
	// Domains are extra ad/tracker domains added to the built-in list.
	Domains []string `koanf:"domains"`
	// SameOrigin permits programmatic redirects that stay on the same origin.
	SameOrigin bool `koanf:"sameorigin"`
	// Interval is the optional periodic cleanup fallback in the injected script.
	Interval time.Duration `koanf:"interval" validate:"gte=0"`
}

// DEFAULT_APP_CONFIG defines the default application configuration settings for the
// ad-blocking service.
var DEFAULT_APP_CONFIG = AppConfig{
	Env: "prod",
	Log: LoggingConfig{
		Level: "info",
	},
	Server: ServerConfig{
		Addr: "127.0.0.1:8787",
	},
	Engine: EngineConfig{
		DB:       "/var/lib/rr-adblock/rules.db",
		Lists:    []string{},
		Profiles: "",
		Mode:     "balanced",
		Logging:  false,
		Cache:    CacheConfig{Size: 10000},
		Bloom:    BloomConfig{FP: 0.01},
		Fetch: FetchConfig{
			Dir:     "/var/cache/rr-adblock/lists",
			Timeout: 30 * time.Second,
			MaxAge:  24 * time.Hour,
		},
	},
	Controller: ControllerConfig{
		Timeout: 0,
	},
	Defense: DefenseConfig{
		Origins:    []string{},
		Domains:    []string{},
		SameOrigin: false,
		Interval:   0,
	},
}

// validHostPort validates a listen address of the form "host:port" where the
// host may be empty, a name, or an IP address and the port is 1-65535.
func validHostPort(fl validator.FieldLevel) bool {
	addr := fl.Field().String()
	host, port, err := net.SplitHostPort(addr)
	if err != nil || port == "" {
		return false
	}
	if strings.ContainsAny(host, " /") {
		return false
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	return err == nil && portNum > 0
}

// validListSource accepts http(s) URLs with a host, or absolute file paths.
func validListSource(fl validator.FieldLevel) bool {
	src := strings.TrimSpace(fl.Field().String())
	if src == "" {
		return false
	}
	if filepath.IsAbs(src) {
		return true
	}
	u, err := url.Parse(src)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// validOrigin accepts "scheme://host[:port]" with no path.
func validOrigin(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != "" && (u.Path == "" || u.Path == "/") && u.RawQuery == ""
}

// envLoader loads environment variables with the prefix "ADBLOCK_".
// Keys are lowercased, the prefix removed, and "_" turned into the nesting
// separator. Values containing spaces or commas become lists.
// It is a variable so tests can mock it.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "ADBLOCK_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, "ADBLOCK_")), "_", ".")
			value = strings.TrimSpace(value)

			if value == "" {
				return key, value
			}

			if strings.Contains(value, " ") || strings.Contains(value, ",") {
				parts := strings.FieldsFunc(value, func(r rune) bool {
					return r == ' ' || r == ','
				})
				return key, parts
			}

			return key, value
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG into the provided Koanf instance
// using the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the custom "host_port", "list_source" and
// "origin" validation tags.
var registerValidation = func(v *validator.Validate) error {
	if err := v.RegisterValidation("host_port", validHostPort); err != nil {
		return err
	}
	if err := v.RegisterValidation("list_source", validListSource); err != nil {
		return err
	}
	return v.RegisterValidation("origin", validOrigin)
}

// Load applies defaults, overlays environment variables, and validates the
// result.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	err := defaultLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	err = envLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	err = registerValidation(validate)
	if err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	err = validate.Struct(&cfg)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
