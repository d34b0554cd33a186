// Package devloop provides a public Go API for running the local
// development loop of a project.
//
// Basic usage:
//
//	err := devloop.Run(ctx, "path/to/project")
//
// With options:
//
//	dl, err := devloop.New("path/to/project",
//	    devloop.WithPort(3000),
//	    devloop.WithAccountID(42),
//	    devloop.WithUploadURL("https://deploy.example.com/api"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(dl.Info())
//	err = dl.Run(ctx)
package devloop

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hupe1980/devloop/internal/component"
	"github.com/hupe1980/devloop/internal/component/app"
	"github.com/hupe1980/devloop/internal/component/js"
	loop "github.com/hupe1980/devloop/internal/devloop"
	"github.com/hupe1980/devloop/internal/logging"
	"github.com/hupe1980/devloop/internal/project"
	"github.com/hupe1980/devloop/internal/upload"
)

// DefaultPort is the dev server port used when none is configured.
const DefaultPort = 8080

// Uploader performs the full project upload.
type Uploader = upload.Uploader

// UploadRequest describes one upload.
type UploadRequest = upload.Request

// Terminator supplies termination requests.
type Terminator = loop.Terminator

// Option configures a DevLoop.
// Use the With* functions to create Options.
type Option func(*options)

type options struct {
	port            int
	accountID       int
	uploadURL       string
	buildDir        string
	shutdownTimeout time.Duration

	logger      *slog.Logger
	out         io.Writer
	uploader    Uploader
	terminator  Terminator
	catalog     *component.Catalog
	descriptors func(*project.Config) []component.Descriptor
}

// WithPort sets the dev server port (default: 8080).
func WithPort(port int) Option { return func(o *options) { o.port = port } }

// WithAccountID sets the account uploads are sent to.
func WithAccountID(id int) Option { return func(o *options) { o.accountID = id } }

// WithUploadURL sets the upload service endpoint. Without it, archives are
// written to the build directory.
func WithUploadURL(url string) Option { return func(o *options) { o.uploadURL = url } }

// WithBuildDir sets where archives are written when no upload URL is set.
func WithBuildDir(dir string) Option { return func(o *options) { o.buildDir = dir } }

// WithShutdownTimeout bounds how long the dev server may drain on restart.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) { o.shutdownTimeout = d }
}

// WithLogger sets the logger (default: discard).
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithOutput sets where the ready banner is written (default: discard).
func WithOutput(w io.Writer) Option { return func(o *options) { o.out = w } }

// WithUploader replaces the built-in HTTP uploader.
func WithUploader(u Uploader) Option { return func(o *options) { o.uploader = u } }

// WithTerminator replaces the signal and keypress terminator.
func WithTerminator(t Terminator) Option { return func(o *options) { o.terminator = t } }

// WithCatalog replaces the handler catalog (default: DefaultCatalog).
func WithCatalog(c *component.Catalog) Option { return func(o *options) { o.catalog = c } }

// WithDescriptors replaces the component descriptors
// (default: DefaultDescriptors).
func WithDescriptors(fn func(*project.Config) []component.Descriptor) Option {
	return func(o *options) { o.descriptors = fn }
}

// DefaultCatalog returns a catalog with the built-in handlers registered.
func DefaultCatalog() *component.Catalog {
	c := component.NewCatalog()
	app.Register(c)
	js.Register(c)

	return c
}

// DefaultDescriptors returns the built-in component descriptors. A
// component is enabled when the project contains it.
func DefaultDescriptors(p *project.Config) []component.Descriptor {
	has := func(t string) func() bool {
		return func() bool { return p == nil || p.HasComponent(t) }
	}

	return []component.Descriptor{
		{Type: "app", BaseRoute: "app", HandlerRef: app.Ref, Enabled: has("app")},
		{Type: "js", BaseRoute: "js", HandlerRef: js.Ref, Enabled: has("js")},
	}
}

// ComponentInfo describes a loaded component.
type ComponentInfo struct {
	Type         string   `json:"type" yaml:"type"`
	BaseRoute    string   `json:"baseRoute" yaml:"baseRoute"`
	HandlerRef   string   `json:"handlerRef" yaml:"handlerRef"`
	Capabilities []string `json:"capabilities" yaml:"capabilities"`
}

// Initialized reports whether the component has any capability.
func (c ComponentInfo) Initialized() bool {
	return len(c.Capabilities) > 0
}

// DevLoop is a prepared dev loop for one project.
type DevLoop struct {
	// Project is the parsed project file.
	Project *project.Config

	// ProjectDir is the directory holding the project file.
	ProjectDir string

	registry    *component.Registry
	coordinator *loop.Coordinator
}

// New discovers the project containing path, validates it, loads the
// component registry and prepares the coordinator. Nothing is started.
func New(path string, opts ...Option) (*DevLoop, error) {
	o := &options{
		port:        DefaultPort,
		logger:      logging.Discard(),
		out:         io.Discard,
		catalog:     DefaultCatalog(),
		descriptors: DefaultDescriptors,
	}

	for _, opt := range opts {
		opt(o)
	}

	cfg, dir, err := project.Discover(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(dir); err != nil {
		return nil, err
	}

	registry, err := component.Load(o.descriptors(cfg), o.catalog, logging.Subsystem(o.logger, "component"))
	if err != nil {
		return nil, fmt.Errorf("loading components: %w", err)
	}

	uploader := o.uploader
	if uploader == nil {
		uploader = &upload.HTTPUploader{
			Endpoint: o.uploadURL,
			BuildDir: o.buildDir,
			Logger:   logging.Subsystem(o.logger, "upload"),
		}
	}

	coordinator, err := loop.New(loop.Options{
		Port:            o.port,
		ProjectDir:      dir,
		Project:         cfg,
		AccountID:       o.accountID,
		Registry:        registry,
		Uploader:        uploader,
		Terminator:      o.terminator,
		ShutdownTimeout: o.shutdownTimeout,
		Logger:          logging.Subsystem(o.logger, "devloop"),
		Out:             o.out,
	})
	if err != nil {
		return nil, err
	}

	return &DevLoop{
		Project:     cfg,
		ProjectDir:  dir,
		registry:    registry,
		coordinator: coordinator,
	}, nil
}

// Components lists the loaded components in registration order.
func (d *DevLoop) Components() []ComponentInfo {
	comps := d.registry.Components()
	out := make([]ComponentInfo, 0, len(comps))

	for _, c := range comps {
		out = append(out, ComponentInfo{
			Type:         c.Type,
			BaseRoute:    c.BaseRoute,
			HandlerRef:   c.HandlerRef,
			Capabilities: c.Handlers.Names(),
		})
	}

	return out
}

// Info renders the set-up summary listing the initialized components.
func (d *DevLoop) Info() string {
	var bases []string
	for _, c := range d.registry.Initialized() {
		bases = append(bases, c.BaseRoute)
	}

	return loop.InfoSection(d.Project.Name, bases)
}

// Run blocks until the dev loop terminates.
func (d *DevLoop) Run(ctx context.Context) error {
	return d.coordinator.Run(ctx)
}

// Run prepares and runs the dev loop for the project containing path.
func Run(ctx context.Context, path string, opts ...Option) error {
	dl, err := New(path, opts...)
	if err != nil {
		return err
	}

	return dl.Run(ctx)
}
