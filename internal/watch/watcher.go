package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// DefaultIgnoreDirs are directory names never watched. Other dot-directories
// and dotfiles are watched like any other path.
var DefaultIgnoreDirs = []string{".git", "node_modules"}

// Event is a single relevant filesystem mutation.
type Event struct {
	Op   fsnotify.Op
	Path string
}

// String returns the string representation of the event.
func (e Event) String() string {
	return fmt.Sprintf("%s %s", e.Op, e.Path)
}

// Options configures a watch session.
type Options struct {
	// Root is the directory to watch recursively.
	Root string

	// IgnoreDirs are directory base names skipped during the scan and when
	// new directories appear. Nil means DefaultIgnoreDirs.
	IgnoreDirs []string

	// Logger is used for structured logging.
	Logger *slog.Logger
}

// Session is one running watcher.
type Session struct {
	watcher  *fsnotify.Watcher
	opts     Options
	ready    atomic.Bool
	stopping chan struct{}
	done     chan struct{}

	stopOnce sync.Once
	stopErr  error
}

// Start scans opts.Root and begins watching it. Pre-existing files produce
// no events. Once the scan has completed, onReady is invoked from the watch
// goroutine and every relevant mutation is reported through onChange, one
// call per event.
func Start(opts Options, onReady func(), onChange func(Event)) (*Session, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.IgnoreDirs == nil {
		opts.IgnoreDirs = DefaultIgnoreDirs
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	if err := addRecursive(watcher, opts.Root, opts.IgnoreDirs); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", opts.Root, err)
	}

	s := &Session{
		watcher:  watcher,
		opts:     opts,
		stopping: make(chan struct{}),
		done:     make(chan struct{}),
	}

	go s.loop(onReady, onChange)

	return s, nil
}

func (s *Session) loop(onReady func(), onChange func(Event)) {
	defer close(s.done)

	s.ready.Store(true)

	if onReady != nil {
		onReady()
	}

	for {
		select {
		case <-s.stopping:
			return

		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}

			if !isRelevant(event) {
				continue
			}

			// New directories are watched too. Files written into a new
			// directory before it is added get no event of their own; the
			// directory's Create is reported and is enough to restart.
			if event.Has(fsnotify.Create) {
				info, statErr := os.Stat(event.Name)
				if statErr == nil && info.IsDir() && !slices.Contains(s.opts.IgnoreDirs, info.Name()) {
					if err := addRecursive(s.watcher, event.Name, s.opts.IgnoreDirs); err != nil {
						s.opts.Logger.Warn("watching new directory failed",
							slog.String("path", event.Name),
							slog.String("error", err.Error()),
						)
					}
				}
			}

			select {
			case <-s.stopping:
				return
			default:
			}

			if onChange != nil {
				onChange(Event{Op: event.Op, Path: event.Name})
			}

		case watchErr, ok := <-s.watcher.Errors:
			if !ok {
				return
			}

			s.opts.Logger.Error("watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// Ready reports whether the initial scan has completed and events are
// being delivered.
func (s *Session) Ready() bool {
	return s.ready.Load()
}

// Root returns the watched directory.
func (s *Session) Root() string {
	return s.opts.Root
}

// Stop detaches every watch and waits for the event goroutine to exit.
// After Stop returns no callback of this session can fire. Stop is
// idempotent.
func (s *Session) Stop() error {
	s.stopOnce.Do(func() {
		close(s.stopping)
		s.ready.Store(false)

		if err := s.watcher.Close(); err != nil && !errors.Is(err, fsnotify.ErrClosed) {
			s.stopErr = fmt.Errorf("closing watcher: %w", err)
		}

		<-s.done
	})

	return s.stopErr
}

// addRecursive walks root and adds all directories to the watcher.
func addRecursive(watcher *fsnotify.Watcher, root string, ignore []string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && slices.Contains(ignore, d.Name()) {
				return filepath.SkipDir
			}

			return watcher.Add(path)
		}

		return nil
	})
}

// isRelevant reports whether event is a mutation worth acting on.
func isRelevant(event fsnotify.Event) bool {
	if event.Op == 0 {
		return false
	}

	// Only care about write, create, remove, rename.
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	name := filepath.Base(event.Name)

	// Ignore editor swap and backup files.
	if strings.HasSuffix(name, "~") ||
		strings.HasSuffix(name, ".swp") || strings.HasPrefix(name, "#") {
		return false
	}

	return true
}
