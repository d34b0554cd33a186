// Package devloop coordinates the local development loop.
//
// The [Coordinator] owns one dev server and one file watcher at a time. On
// every file change it closes the watcher, then the server, asks the
// component registry whether the change needs a full upload, performs the
// upload if so, and launches a fresh pair. Termination requests are honored
// from every live state and always run component cleanup.
//
// All coordinator state belongs to the goroutine executing [Coordinator.Run].
// Server and watcher callbacks only perform non-blocking sends into channels
// created for their own cycle, so a callback of a superseded session has
// nowhere to deliver and is dropped.
package devloop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/zoobzio/capitan"

	"github.com/hupe1980/devloop/internal/devserver"
	"github.com/hupe1980/devloop/internal/project"
	"github.com/hupe1980/devloop/internal/upload"
	"github.com/hupe1980/devloop/internal/watch"
)

// DefaultShutdownTimeout bounds how long a server may drain on teardown.
const DefaultShutdownTimeout = 5 * time.Second

// ErrAlreadyStarted is returned by Run on a coordinator that has already run.
var ErrAlreadyStarted = errors.New("dev loop already started")

// Registry is the component registry as seen by the coordinator.
type Registry interface {
	devserver.Mounter

	DispatchChange(ctx context.Context, path string) bool
	DispatchCleanup(ctx context.Context)
}

// ServerSession is an open dev server.
type ServerSession interface {
	Port() int
	Stop(ctx context.Context) error
}

// WatchSession is an open file watcher.
type WatchSession interface {
	Stop() error
}

// ServerStarter opens a dev server and calls onReady once it is bound.
type ServerStarter func(onReady func()) (ServerSession, error)

// WatchStarter opens a watcher on the project directory, calls onReady after
// the initial scan and onChange once per subsequent change.
type WatchStarter func(onReady func(), onChange func(watch.Event)) (WatchSession, error)

// Options configures a Coordinator.
type Options struct {
	// Port is the dev server port.
	Port int

	// ProjectDir is the watched project directory.
	ProjectDir string

	// Project is the parsed project file, passed to the uploader.
	Project *project.Config

	// AccountID is the target account of uploads.
	AccountID int

	// Registry receives changes and cleanup requests. Required.
	Registry Registry

	// Uploader performs full uploads. Required.
	Uploader upload.Uploader

	// Terminator supplies termination requests. Nil means a
	// ProcessTerminator on stdin.
	Terminator Terminator

	// StartServer overrides how servers are opened. Nil means a devserver on
	// Port serving the registry's routes.
	StartServer ServerStarter

	// StartWatch overrides how watchers are opened. Nil means a recursive
	// watch of ProjectDir.
	StartWatch WatchStarter

	// ShutdownTimeout bounds server draining. Zero means
	// DefaultShutdownTimeout.
	ShutdownTimeout time.Duration

	// Logger is used for structured logging.
	Logger *slog.Logger

	// Out receives the ready banner.
	Out io.Writer
}

// Coordinator runs the restart cycle. A Coordinator runs once.
type Coordinator struct {
	opts    Options
	logger  *slog.Logger
	started atomic.Bool
	state   atomic.Int32
	cycles  atomic.Uint64
}

// New validates opts and creates a Coordinator.
func New(opts Options) (*Coordinator, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}

	if opts.Uploader == nil {
		return nil, fmt.Errorf("uploader is required")
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Out == nil {
		opts.Out = io.Discard
	}

	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}

	if opts.Terminator == nil {
		opts.Terminator = &ProcessTerminator{Logger: opts.Logger}
	}

	if opts.StartServer == nil {
		opts.StartServer = defaultServerStarter(opts)
	}

	if opts.StartWatch == nil {
		opts.StartWatch = defaultWatchStarter(opts)
	}

	return &Coordinator{opts: opts, logger: opts.Logger}, nil
}

func defaultServerStarter(opts Options) ServerStarter {
	return func(onReady func()) (ServerSession, error) {
		handler := devserver.NewHandler(opts.Registry, devserver.Options{Logger: opts.Logger})

		s, err := devserver.Start(opts.Port, handler, onReady)
		if err != nil {
			return nil, err
		}

		return s, nil
	}
}

func defaultWatchStarter(opts Options) WatchStarter {
	return func(onReady func(), onChange func(watch.Event)) (WatchSession, error) {
		s, err := watch.Start(watch.Options{Root: opts.ProjectDir, Logger: opts.Logger}, onReady, onChange)
		if err != nil {
			return nil, err
		}

		return s, nil
	}
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Cycles returns the number of launched restart cycles.
func (c *Coordinator) Cycles() uint64 {
	return c.cycles.Load()
}

// cycle holds the callback channels of one generation.
type cycle struct {
	generation  uint64
	serverReady chan struct{}
	watchReady  chan struct{}
	changes     chan watch.Event
}

func newCycle(generation uint64) *cycle {
	return &cycle{
		generation:  generation,
		serverReady: make(chan struct{}, 1),
		watchReady:  make(chan struct{}, 1),
		changes:     make(chan watch.Event, 1),
	}
}

func (cy *cycle) onServerReady() {
	select {
	case cy.serverReady <- struct{}{}:
	default:
	}
}

func (cy *cycle) onWatchReady() {
	select {
	case cy.watchReady <- struct{}{}:
	default:
	}
}

// onChange keeps the first change of the cycle; the watcher is stopped
// before the next one could matter.
func (cy *cycle) onChange(e watch.Event) {
	select {
	case cy.changes <- e:
	default:
	}
}

// sessions is the open (server, watcher) pair of the current cycle.
type sessions struct {
	server ServerSession
	watch  WatchSession
}

// Run launches the first cycle and blocks until termination or a fatal
// error. Clean termination returns nil; fatal errors name the failing
// subsystem.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	sub := c.opts.Terminator.Subscribe(ctx)
	term := sub.Done()

	for {
		// A termination that arrived while tearing down or deciding cancels
		// the queued restart.
		if reason, ok := pendingTermination(ctx, term); ok {
			return c.terminate(ctx, sub, nil, reason, nil)
		}

		generation := c.cycles.Add(1)
		cy := newCycle(generation)

		c.transition(ctx, StateLaunching)
		capitan.Emit(ctx, CycleStarted, KeyGeneration.Field(int(generation)))

		open, err := c.launch(cy)
		if err != nil {
			return c.terminate(ctx, sub, open, "", err)
		}

		change, reason, done := c.awaitChange(ctx, cy, open, term)
		if done {
			return c.terminate(ctx, sub, open, reason, nil)
		}

		c.transition(ctx, StateTearingDown)
		capitan.Emit(ctx, ChangeDetected,
			KeyGeneration.Field(int(generation)),
			KeyPath.Field(change.Path),
			KeyOp.Field(change.Op.String()),
		)
		c.logger.Info("change detected", slog.String("path", change.Path), slog.String("op", change.Op.String()))

		c.teardown(ctx, open)

		if reason, ok := pendingTermination(ctx, term); ok {
			return c.terminate(ctx, sub, nil, reason, nil)
		}

		c.transition(ctx, StateDeciding)

		uploadRequired, reason, done := c.decide(ctx, term, change.Path)
		if done {
			return c.terminate(ctx, sub, nil, reason, nil)
		}

		if !uploadRequired {
			continue
		}

		reason, done, err = c.upload(ctx, term)
		if err != nil {
			return c.terminate(ctx, sub, nil, "", err)
		}

		if done {
			return c.terminate(ctx, sub, nil, reason, nil)
		}
	}
}

// launch opens the server, then the watcher, of cy. On error the sessions
// opened so far are returned for closing.
func (c *Coordinator) launch(cy *cycle) (*sessions, error) {
	open := &sessions{}

	srv, err := c.opts.StartServer(cy.onServerReady)
	if err != nil {
		return open, fmt.Errorf("dev server: %w", err)
	}

	open.server = srv

	w, err := c.opts.StartWatch(cy.onWatchReady, cy.onChange)
	if err != nil {
		return open, fmt.Errorf("watcher: %w", err)
	}

	open.watch = w

	return open, nil
}

// awaitChange waits for the cycle to become ready, prints the banner once,
// and returns the first change. done reports termination instead.
func (c *Coordinator) awaitChange(ctx context.Context, cy *cycle, open *sessions, term <-chan Reason) (watch.Event, Reason, bool) {
	var (
		serverReady, watchReady bool
		pending                 *watch.Event
	)

	for {
		select {
		case <-ctx.Done():
			return watch.Event{}, ReasonContext, true
		case reason := <-term:
			return watch.Event{}, reason, true
		case <-cy.serverReady:
			serverReady = true
		case <-cy.watchReady:
			watchReady = true
		case e := <-cy.changes:
			if pending == nil {
				pending = &e
			}
		}

		if serverReady && watchReady && c.State() == StateLaunching {
			c.announce(open.server.Port())
			c.transition(ctx, StateRunning)
		}

		if pending != nil && c.State() == StateRunning {
			return *pending, "", false
		}
	}
}

func (c *Coordinator) announce(port int) {
	c.logger.Debug("dev loop ready", slog.Uint64("generation", c.cycles.Load()))
	fmt.Fprint(c.opts.Out, ReadyBanner(port, c.opts.ProjectDir))
}

// teardown closes the watcher and then the server. Close failures are
// logged; the sessions are gone either way.
func (c *Coordinator) teardown(ctx context.Context, open *sessions) {
	if open == nil {
		return
	}

	if open.watch != nil {
		if err := open.watch.Stop(); err != nil {
			c.logger.Warn("closing watcher", slog.String("error", err.Error()))
		}

		open.watch = nil
	}

	if open.server != nil {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.ShutdownTimeout)
		defer cancel()

		if err := open.server.Stop(stopCtx); err != nil {
			c.logger.Warn("closing dev server", slog.String("error", err.Error()))
		}

		open.server = nil
	}
}

// decide dispatches path to the registry while still honoring termination.
// A termination cancels the handlers' context and waits for the dispatch to
// return, so cleanup never overlaps a change handler.
func (c *Coordinator) decide(ctx context.Context, term <-chan Reason, path string) (bool, Reason, bool) {
	dctx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := make(chan bool, 1)

	go func() {
		result <- c.opts.Registry.DispatchChange(dctx, path)
	}()

	select {
	case uploadRequired := <-result:
		return uploadRequired, "", false
	case reason := <-term:
		cancel()
		<-result

		return false, reason, true
	case <-ctx.Done():
		<-result

		return false, ReasonContext, true
	}
}

// upload runs the uploader while still honoring termination. A termination
// cancels the upload and waits for it to return.
func (c *Coordinator) upload(ctx context.Context, term <-chan Reason) (Reason, bool, error) {
	capitan.Emit(ctx, UploadRequested, KeyGeneration.Field(int(c.cycles.Load())))

	uctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 1)

	go func() {
		errc <- c.opts.Uploader.UploadProject(uctx, upload.Request{
			AccountID:  c.opts.AccountID,
			Project:    c.opts.Project,
			ProjectDir: c.opts.ProjectDir,
		})
	}()

	select {
	case err := <-errc:
		if err != nil {
			return "", false, fmt.Errorf("upload: %w", err)
		}

		return "", false, nil
	case reason := <-term:
		cancel()
		<-errc

		return reason, true, nil
	case <-ctx.Done():
		<-errc

		return ReasonContext, true, nil
	}
}

// terminate closes open sessions, runs component cleanup and ends the
// subscription. A nil cause means clean termination.
func (c *Coordinator) terminate(ctx context.Context, sub Subscription, open *sessions, reason Reason, cause error) error {
	c.transition(ctx, StateTerminating)

	if cause != nil {
		c.logger.Error("dev loop failed", slog.String("error", cause.Error()))
	} else {
		c.logger.Info("termination requested", slog.String("reason", string(reason)))
	}

	c.teardown(ctx, open)

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.ShutdownTimeout)
	defer cancel()

	c.opts.Registry.DispatchCleanup(cleanupCtx)

	sub.Unsubscribe()

	if cause != nil {
		capitan.Emit(ctx, Terminated, KeyReason.Field(string(reason)), KeyError.Field(cause.Error()))
		return cause
	}

	capitan.Emit(ctx, Terminated, KeyReason.Field(string(reason)))

	c.logger.Info("dev mode exited")

	return nil
}

func (c *Coordinator) transition(ctx context.Context, next State) {
	prev := State(c.state.Swap(int32(next)))
	if prev == next {
		return
	}

	capitan.Emit(ctx, StateChanged,
		KeyGeneration.Field(int(c.cycles.Load())),
		KeyOldState.Field(prev.String()),
		KeyNewState.Field(next.String()),
	)
}

// pendingTermination reports a termination request without blocking.
func pendingTermination(ctx context.Context, term <-chan Reason) (Reason, bool) {
	select {
	case reason := <-term:
		return reason, true
	default:
	}

	if ctx.Err() != nil {
		return ReasonContext, true
	}

	return "", false
}
