package component

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// baseRoutePattern restricts base routes to a single URL path segment.
var baseRoutePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// Descriptor declares one component type.
type Descriptor struct {
	// Type is the unique component type name.
	Type string `validate:"required"`

	// BaseRoute is the dev server path segment the component's routes are
	// mounted under.
	BaseRoute string `validate:"required"`

	// HandlerRef names the handler in the Resolver.
	HandlerRef string `validate:"required"`

	// Enabled reports whether the project contains this component type.
	// A nil Enabled means always enabled.
	Enabled func() bool `validate:"-"`
}

// Component is a descriptor together with its resolved capabilities.
type Component struct {
	Descriptor

	Handlers Capabilities
}

// Mux is the subset of *http.ServeMux used to mount component routes.
type Mux interface {
	Handle(pattern string, handler http.Handler)
}

// Registry is the immutable set of loaded components in registration order.
type Registry struct {
	components []Component
	logger     *slog.Logger
}

// Load validates descriptors and resolves each handler reference exactly
// once. A component whose handler cannot be resolved, or whose Enabled
// condition is false, receives an empty capability set instead of failing
// the load. Invalid or duplicate descriptors are an error.
func Load(descriptors []Descriptor, resolver Resolver, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	types := make(map[string]bool, len(descriptors))
	routes := make(map[string]bool, len(descriptors))

	for i, d := range descriptors {
		if err := validate.Struct(d); err != nil {
			return nil, fmt.Errorf("component[%d]: %w", i, err)
		}

		if !baseRoutePattern.MatchString(d.BaseRoute) {
			return nil, fmt.Errorf("component %q: base route %q must be a single path segment", d.Type, d.BaseRoute)
		}

		if types[d.Type] {
			return nil, fmt.Errorf("component %q: duplicate type", d.Type)
		}

		if routes[d.BaseRoute] {
			return nil, fmt.Errorf("component %q: base route %q already in use", d.Type, d.BaseRoute)
		}

		types[d.Type] = true
		routes[d.BaseRoute] = true
	}

	r := &Registry{
		components: make([]Component, 0, len(descriptors)),
		logger:     logger,
	}

	for _, d := range descriptors {
		r.components = append(r.components, Component{
			Descriptor: d,
			Handlers:   resolve(d, resolver, logger),
		})
	}

	return r, nil
}

func resolve(d Descriptor, resolver Resolver, logger *slog.Logger) Capabilities {
	log := logger.With(slog.String("component", d.Type))

	if d.Enabled != nil && !d.Enabled() {
		log.Debug("component not present in project")
		return Capabilities{}
	}

	var (
		h   any
		err error
	)

	func() {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()

		h, err = resolver.Resolve(d.HandlerRef, log)
	}()

	if err != nil {
		log.Warn("component handler could not be loaded",
			slog.String("ref", d.HandlerRef),
			slog.String("error", err.Error()),
		)

		return Capabilities{}
	}

	return CapabilitiesOf(h)
}

// Components returns a copy of the loaded components in registration order.
func (r *Registry) Components() []Component {
	out := make([]Component, len(r.components))
	copy(out, r.components)

	return out
}

// Initialized returns the components with at least one capability.
func (r *Registry) Initialized() []Component {
	var out []Component

	for _, c := range r.components {
		if !c.Handlers.Empty() {
			out = append(out, c)
		}
	}

	return out
}

// DispatchChange passes path to every component implementing
// HandleFileChange, in registration order, and reports whether any of them
// requires an upload. A failing handler has no opinion.
func (r *Registry) DispatchChange(ctx context.Context, path string) bool {
	uploadRequired := false

	for _, c := range r.components {
		if c.Handlers.HandleFileChange == nil {
			continue
		}

		decision, err := callChange(ctx, c.Handlers.HandleFileChange, path)
		if err != nil {
			r.logger.Warn("component failed to handle file change",
				slog.String("component", c.Type),
				slog.String("path", path),
				slog.String("error", err.Error()),
			)

			continue
		}

		if decision == UploadRequired {
			if !uploadRequired {
				r.logger.Info(fmt.Sprintf("%s component is telling us to upload", c.BaseRoute))
			}

			uploadRequired = true
		}
	}

	return uploadRequired
}

// DispatchCleanup calls HandleCleanup on every component implementing it.
// Failures are logged and do not stop the remaining cleanups.
func (r *Registry) DispatchCleanup(ctx context.Context) {
	for _, c := range r.components {
		if c.Handlers.HandleCleanup == nil {
			continue
		}

		if err := callCleanup(ctx, c.Handlers.HandleCleanup); err != nil {
			r.logger.Warn("component cleanup failed",
				slog.String("component", c.Type),
				slog.String("error", err.Error()),
			)
		}
	}
}

// MountRoutes mounts the handler returned by every SetupRoute capability
// under "/<baseRoute>/" with the prefix stripped, and returns the mounted
// base routes. A failing SetupRoute skips that component's routes.
func (r *Registry) MountRoutes(mux Mux) []string {
	var mounted []string

	for _, c := range r.components {
		if c.Handlers.SetupRoute == nil {
			continue
		}

		h, err := callSetup(c.Handlers.SetupRoute)
		if err == nil && h == nil {
			err = fmt.Errorf("no route handler returned")
		}

		if err != nil {
			r.logger.Warn("component route setup failed",
				slog.String("component", c.Type),
				slog.String("error", err.Error()),
			)

			continue
		}

		prefix := "/" + c.BaseRoute
		mux.Handle(prefix+"/", http.StripPrefix(prefix, h))

		mounted = append(mounted, c.BaseRoute)
	}

	return mounted
}

func callChange(ctx context.Context, fn func(context.Context, string) (Decision, error), path string) (d Decision, err error) {
	defer func() {
		if p := recover(); p != nil {
			d, err = HandledLocally, fmt.Errorf("panic: %v", p)
		}
	}()

	return fn(ctx, path)
}

func callCleanup(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	return fn(ctx)
}

func callSetup(fn func() (http.Handler, error)) (h http.Handler, err error) {
	defer func() {
		if p := recover(); p != nil {
			h, err = nil, fmt.Errorf("panic: %v", p)
		}
	}()

	return fn()
}
