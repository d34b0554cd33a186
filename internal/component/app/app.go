// Package app provides the built-in "app" component. Application changes
// cannot be applied locally, so every change requires a project upload.
package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/hupe1980/devloop/internal/component"
)

// Ref is the catalog reference of the app handler.
const Ref = "builtin/app"

// Handler implements every component capability.
type Handler struct {
	logger *slog.Logger
}

// New creates an app handler.
func New(logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{logger: logger}
}

// Register adds the app handler factory to c.
func Register(c *component.Catalog) {
	c.Register(Ref, func(logger *slog.Logger) (any, error) {
		return New(logger), nil
	})
}

// SetupRoute returns the app sub-router.
func (h *Handler) SetupRoute() (http.Handler, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /test", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "Custom app component handling here")
	})

	return h.middleware(mux), nil
}

func (h *Handler) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.logger.Debug("Custom middleware for app component", slog.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}

// HandleFileChange always requests an upload.
func (h *Handler) HandleFileChange(_ context.Context, path string) (component.Decision, error) {
	h.logger.Info("handling change for app component", slog.String("path", path))

	return component.UploadRequired, nil
}

// HandleCleanup releases nothing but reports the shutdown.
func (h *Handler) HandleCleanup(context.Context) error {
	h.logger.Info("Cleaning up for app component")

	return nil
}
