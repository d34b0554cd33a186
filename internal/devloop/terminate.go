package devloop

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/muesli/cancelreader"
	"golang.org/x/term"
)

// Reason names what requested termination.
type Reason string

// Termination reasons.
const (
	ReasonSignal       Reason = "signal"
	ReasonQuitKey      Reason = "quit key"
	ReasonInterruptKey Reason = "interrupt key"
	ReasonContext      Reason = "context canceled"
)

// Key bytes that request termination.
const (
	quitKey      = 'q'
	interruptKey = 0x03
)

// Terminator hands out termination subscriptions.
type Terminator interface {
	Subscribe(ctx context.Context) Subscription
}

// Subscription is a scoped registration for termination requests.
type Subscription interface {
	// Done delivers the first termination request.
	Done() <-chan Reason

	// Unsubscribe stops listening and restores any terminal state.
	// It is safe to call more than once.
	Unsubscribe()
}

// ProcessTerminator merges process signals and keypresses into one
// termination path.
type ProcessTerminator struct {
	// Input is read for keypresses. Nil means os.Stdin, which is only read
	// when it is a terminal.
	Input io.Reader

	// Signals are the process signals that request termination. Nil means
	// SIGINT and SIGTERM.
	Signals []os.Signal

	// Logger is used for structured logging.
	Logger *slog.Logger
}

var _ Terminator = (*ProcessTerminator)(nil)

// Subscribe starts listening for termination requests. When the input is a
// terminal it is switched to cbreak mode until Unsubscribe.
func (t *ProcessTerminator) Subscribe(ctx context.Context) Subscription {
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &processSubscription{
		done:    make(chan Reason, 1),
		stop:    make(chan struct{}),
		sigs:    make(chan os.Signal, 1),
		logger:  logger,
		restore: func() error { return nil },
	}

	sigs := t.Signals
	if sigs == nil {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}

	signal.Notify(s.sigs, sigs...)

	go s.watchSignals(ctx)

	input := t.Input
	if input == nil {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return s
		}

		input = os.Stdin
	}

	if f, ok := input.(interface{ Fd() uintptr }); ok && term.IsTerminal(int(f.Fd())) {
		restore, err := makeCbreak(int(f.Fd()))
		if err != nil {
			logger.Warn("could not switch terminal to cbreak mode", slog.String("error", err.Error()))
		} else {
			s.restore = restore
		}
	}

	reader, err := cancelreader.NewReader(input)
	if err != nil {
		logger.Warn("keypress input unavailable", slog.String("error", err.Error()))
		return s
	}

	s.reader = reader
	s.readerDone = make(chan struct{})

	go s.readKeys()

	return s
}

type processSubscription struct {
	done   chan Reason
	stop   chan struct{}
	sigs   chan os.Signal
	logger *slog.Logger

	reader     cancelreader.CancelReader
	readerDone chan struct{}
	restore    func() error

	fireOnce  sync.Once
	unsubOnce sync.Once
}

func (s *processSubscription) Done() <-chan Reason {
	return s.done
}

func (s *processSubscription) fire(r Reason) {
	s.fireOnce.Do(func() {
		s.done <- r
	})
}

func (s *processSubscription) watchSignals(ctx context.Context) {
	select {
	case <-s.stop:
	case <-ctx.Done():
	case sig := <-s.sigs:
		s.logger.Debug("termination signal received", slog.String("signal", sig.String()))
		s.fire(ReasonSignal)
	}
}

func (s *processSubscription) readKeys() {
	defer close(s.readerDone)

	buf := make([]byte, 64)

	for {
		n, err := s.reader.Read(buf)

		for _, b := range buf[:n] {
			switch b {
			case quitKey:
				s.fire(ReasonQuitKey)
				return
			case interruptKey:
				s.fire(ReasonInterruptKey)
				return
			}
		}

		if err != nil {
			if !errors.Is(err, cancelreader.ErrCanceled) && !errors.Is(err, io.EOF) {
				s.logger.Debug("keypress input closed", slog.String("error", err.Error()))
			}

			return
		}
	}
}

func (s *processSubscription) Unsubscribe() {
	s.unsubOnce.Do(func() {
		signal.Stop(s.sigs)
		close(s.stop)

		if s.reader != nil {
			// A reader that cannot interrupt a pending read is abandoned;
			// its next read returns without consuming input.
			if s.reader.Cancel() {
				<-s.readerDone
			}

			_ = s.reader.Close()
		}

		if err := s.restore(); err != nil {
			s.logger.Warn("could not restore terminal", slog.String("error", err.Error()))
		}
	})
}
