// Package js provides the built-in "js" component. Script assets are served
// straight from the source directory, so changes are handled locally and
// never require an upload.
package js

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/hupe1980/devloop/internal/component"
)

// Ref is the catalog reference of the js handler.
const Ref = "builtin/js"

// Handler implements every component capability.
type Handler struct {
	logger  *slog.Logger
	changes atomic.Int64
}

// New creates a js handler.
func New(logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{logger: logger}
}

// Register adds the js handler factory to c.
func Register(c *component.Catalog) {
	c.Register(Ref, func(logger *slog.Logger) (any, error) {
		return New(logger), nil
	})
}

// SetupRoute returns the js sub-router.
func (h *Handler) SetupRoute() (http.Handler, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /test", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "Custom js component handling here")
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.logger.Debug("Custom middleware for js component", slog.String("path", r.URL.Path))
		mux.ServeHTTP(w, r)
	}), nil
}

// HandleFileChange applies the change locally.
func (h *Handler) HandleFileChange(_ context.Context, path string) (component.Decision, error) {
	n := h.changes.Add(1)
	h.logger.Info("handling change for js component", slog.String("path", path), slog.Int64("changes", n))

	return component.HandledLocally, nil
}

// Changes returns the number of changes handled so far.
func (h *Handler) Changes() int64 {
	return h.changes.Load()
}

// HandleCleanup reports the shutdown.
func (h *Handler) HandleCleanup(context.Context) error {
	h.logger.Info("Cleaning up for js component", slog.Int64("changes", h.changes.Load()))

	return nil
}
