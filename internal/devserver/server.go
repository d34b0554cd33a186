// Package devserver runs the local development HTTP server.
//
// A [Session] owns exactly one listener. The listener is bound synchronously
// by [Start], so bind failures surface to the caller, and serving happens on
// a background goroutine until [Session.Stop] drains it.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/cors"

	"github.com/hupe1980/devloop/internal/component"
)

// Greeting is the body served on GET /.
const Greeting = "devloop local dev server"

// DefaultMaxBodyBytes is the request body limit applied to every route.
const DefaultMaxBodyBytes int64 = 50 << 20

// Mounter mounts component sub-routes on a mux.
type Mounter interface {
	MountRoutes(mux component.Mux) []string
}

// Options configures the handler returned by NewHandler.
type Options struct {
	// MaxBodyBytes limits request bodies. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// Logger receives request and mount logs.
	Logger *slog.Logger
}

// NewHandler builds the dev server handler: the greeting on GET /, one
// sub-route per component with a route capability, a body size limit and
// unrestricted CORS.
func NewHandler(m Mounter, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	limit := opts.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, Greeting)
	})

	if m != nil {
		for _, base := range m.MountRoutes(mux) {
			logger.Debug("mounted component routes", slog.String("route", "/"+base+"/"))
		}
	}

	return cors.AllowAll().Handler(limitBody(limit, mux))
}

func limitBody(limit int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		next.ServeHTTP(w, r)
	})
}

// Session is one running server.
type Session struct {
	srv      *http.Server
	listener net.Listener
	ready    atomic.Bool
	done     chan struct{}
	serveErr error

	stopOnce sync.Once
	stopErr  error
}

// Start binds port on all interfaces and serves handler in the background.
// A port of zero binds an ephemeral port. onReady, if non-nil, is invoked
// once the listener is bound.
func Start(port int, handler http.Handler, onReady func()) (*Session, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("binding port %d: %w", port, err)
	}

	s := &Session{
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		listener: ln,
		done:     make(chan struct{}),
	}

	go func() {
		defer close(s.done)

		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.serveErr = err
		}
	}()

	s.ready.Store(true)

	if onReady != nil {
		onReady()
	}

	return s, nil
}

// Ready reports whether the listener is bound and serving.
func (s *Session) Ready() bool {
	return s.ready.Load()
}

// Addr returns the bound listener address.
func (s *Session) Addr() net.Addr {
	return s.listener.Addr()
}

// Port returns the bound TCP port.
func (s *Session) Port() int {
	if a, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return a.Port
	}

	return 0
}

// Stop closes the listener and waits for in-flight requests to drain or ctx
// to expire, whichever comes first. Stop is idempotent.
func (s *Session) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.ready.Store(false)

		if err := s.srv.Shutdown(ctx); err != nil {
			_ = s.srv.Close()
			s.stopErr = fmt.Errorf("shutting down dev server: %w", err)
		}

		<-s.done

		if s.stopErr == nil && s.serveErr != nil {
			s.stopErr = s.serveErr
		}
	})

	return s.stopErr
}
