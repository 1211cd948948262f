// Package transport exposes the filter controller and the content-view
// defense layer over HTTP for content views running out of process.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/haukened/rr-adblock/internal/adblock/common/log"
)

// ServerTransport is the lifecycle shared by transports.
type ServerTransport interface {
	// Start begins serving requests until ctx is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the transport.
	Stop() error

	// Address returns the network address the transport is bound to.
	Address() string
}

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// HTTPTransport serves an http.Handler on a TCP address.
type HTTPTransport struct {
	addr    string
	handler http.Handler
	logger  log.Logger

	mu       sync.RWMutex
	running  bool
	server   *http.Server
	listener net.Listener
}

var _ ServerTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTP transport instance.
func NewHTTPTransport(addr string, handler http.Handler, logger log.Logger) *HTTPTransport {
	if logger == nil {
		logger = log.Component("transport")
	}
	return &HTTPTransport{addr: addr, handler: handler, logger: logger}
}

// Start binds the listener and serves in the background. Request contexts
// derive from ctx.
func (t *HTTPTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return fmt.Errorf("HTTP transport already running")
	}

	ln, err := net.Listen("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", t.addr, err)
	}

	srv := &http.Server{
		Handler:           t.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	t.server = srv
	t.listener = ln
	t.running = true

	t.logger.Info(map[string]any{
		"transport": "http",
		"address":   ln.Addr().String(),
	}, "transport_started")

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.logger.Error(map[string]any{"error": err.Error()}, "transport_serve_failed")
		}
	}()
	return nil
}

// Stop gracefully shuts down the server, waiting up to five seconds for
// in-flight requests.
func (t *HTTPTransport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := t.server.Shutdown(ctx)
	if err != nil {
		t.logger.Warn(map[string]any{"error": err.Error()}, "transport_shutdown_failed")
	}
	t.running = false

	t.logger.Info(map[string]any{
		"transport": "http",
		"address":   t.listener.Addr().String(),
	}, "transport_stopped")
	return err
}

// Address returns the bound address once started, the configured one before.
func (t *HTTPTransport) Address() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.listener != nil {
		return t.listener.Addr().String()
	}
	return t.addr
}
