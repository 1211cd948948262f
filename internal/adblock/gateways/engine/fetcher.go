package engine

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/haukened/rr-adblock/internal/adblock/common/clock"
	"github.com/haukened/rr-adblock/internal/adblock/common/log"
)

// Error message constants for consistent error handling
const (
	errCacheDirRequired = "list cache directory is required"
	errUnexpectedStatus = "unexpected status %d from %s"
	errListTooLarge     = "list %s exceeds %d bytes"
)

// maxListBytes bounds a single downloaded list.
const maxListBytes = 64 << 20

// Fetcher loads filter lists from local files or over HTTP. Remote lists are
// cached on disk and reused until they are older than MaxAge.
type Fetcher struct {
	client  *http.Client
	dir     string
	timeout time.Duration
	maxAge  time.Duration
	clock   clock.Clock
	logger  log.Logger
}

// FetcherOptions configures a Fetcher.
type FetcherOptions struct {
	// required parameters
	Dir     string
	Timeout time.Duration
	MaxAge  time.Duration
	// options to inject for testing purposes
	Client *http.Client
	Clock  clock.Clock
	Logger log.Logger
}

// NewFetcher creates a Fetcher. Timeout defaults to 30s and MaxAge to 24h.
func NewFetcher(opts FetcherOptions) (*Fetcher, error) {
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, fmt.Errorf(errCacheDirRequired)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 24 * time.Hour
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Component("fetcher")
	}
	return &Fetcher{
		client:  opts.Client,
		dir:     opts.Dir,
		timeout: opts.Timeout,
		maxAge:  opts.MaxAge,
		clock:   opts.Clock,
		logger:  opts.Logger,
	}, nil
}

// isRemote reports whether src is an http(s) URL.
func isRemote(src string) bool {
	lower := strings.ToLower(src)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// cachePath maps a remote source onto its cache file.
func (f *Fetcher) cachePath(src string) string {
	sum := blake2b.Sum256([]byte(src))
	return filepath.Join(f.dir, hex.EncodeToString(sum[:8])+".txt")
}

// Fetch returns the content of src. Local paths are read directly. A remote
// list is served from the cache while it is fresh, unless force is set.
//
// When a download fails and a stale cached copy exists, Fetch returns that
// copy together with the download error.
func (f *Fetcher) Fetch(ctx context.Context, src string, force bool) ([]byte, error) {
	src = strings.TrimSpace(src)
	if !isRemote(src) {
		return os.ReadFile(src)
	}

	path := f.cachePath(src)
	cached, age, cacheErr := f.readCache(path)
	if cacheErr == nil && !force && age < f.maxAge {
		f.logger.Debug(map[string]any{"source": src, "age": age.String()}, "list_cache_hit")
		return cached, nil
	}

	data, err := f.download(ctx, src)
	if err != nil {
		if cacheErr == nil {
			f.logger.Warn(map[string]any{"source": src, "error": err.Error()}, "list_download_failed_using_cache")
			return cached, err
		}
		return nil, err
	}
	if err := f.writeCache(path, data); err != nil {
		f.logger.Warn(map[string]any{"source": src, "error": err.Error()}, "list_cache_write_failed")
	}
	f.logger.Info(map[string]any{"source": src, "bytes": len(data)}, "list_downloaded")
	return data, nil
}

func (f *Fetcher) readCache(path string) ([]byte, time.Duration, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	return data, clock.Age(f.clock, info.ModTime()), nil
}

// writeCache replaces the cache file atomically and stamps it with the
// fetcher's clock.
func (f *Fetcher) writeCache(path string, data []byte) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, ".list-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	now := f.clock.Now()
	return os.Chtimes(path, now, now)
}

func (f *Fetcher) download(ctx context.Context, src string) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(errUnexpectedStatus, resp.StatusCode, src)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxListBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxListBytes {
		return nil, fmt.Errorf(errListTooLarge, src, maxListBytes)
	}
	return data, nil
}
