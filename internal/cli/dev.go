package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"
	"github.com/zoobzio/capitan"

	"github.com/hupe1980/devloop/internal/config"
	loop "github.com/hupe1980/devloop/internal/devloop"
	"github.com/hupe1980/devloop/internal/logging"
	"github.com/hupe1980/devloop/pkg/devloop"
)

// sandboxWarning is logged when dev mode targets a non-sandbox account.
const sandboxWarning = "This command should be run on a sandbox account (allowing it for now)"

// devOptions holds test seams for the dev command.
type devOptions struct {
	extra []devloop.Option
}

func newDevCommand() *cobra.Command {
	return newDevCommandWithOptions(&devOptions{})
}

func newDevCommandWithOptions(opts *devOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dev [path]",
		Short: "Start the local development loop",
		Long: `Start the local dev server and file watcher for the project containing
path (default: the current directory).

Every change under the project directory tears the server down, routes the
change to the project's components and, when any component requires it,
uploads the project before starting the server again.

Press q or Ctrl+C to quit.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}

			return runDev(cmd.Context(), cmd, path, opts)
		},
	}

	registerServerFlags(cmd)

	return cmd
}

func runDev(ctx context.Context, cmd *cobra.Command, path string, opts *devOptions) error {
	cfg := config.FromContext(ctx)
	logger := logging.FromContext(ctx)

	hookSignals()

	accountID, err := resolveAccount(cfg, logger)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	devOpts := append([]devloop.Option{
		devloop.WithPort(cfg.Port),
		devloop.WithAccountID(accountID),
		devloop.WithUploadURL(cfg.UploadURL),
		devloop.WithBuildDir(cfg.BuildDir),
		devloop.WithShutdownTimeout(cfg.ShutdownTimeout),
		devloop.WithLogger(logger),
		devloop.WithOutput(cmd.OutOrStdout()),
	}, opts.extra...)

	dl, err := devloop.New(path, devOpts...)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	if _, err := fmt.Fprintln(cmd.OutOrStdout(), dl.Info()); err != nil {
		return err
	}

	if err := dl.Run(ctx); err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	return nil
}

// resolveAccount returns the target account ID. Without configured
// accounts the upload goes to account 0.
func resolveAccount(cfg *config.Config, logger *slog.Logger) (int, error) {
	account, err := cfg.ResolveAccount("")
	if errors.Is(err, config.ErrNoAccounts) {
		logger.Warn("no account configured, uploads use account 0")
		return 0, nil
	}

	if err != nil {
		return 0, err
	}

	if !account.IsSandbox() {
		logger.Warn(sandboxWarning, slog.String("account", account.Name))
	}

	logger.Debug("using account", slog.String("account", account.Name), slog.Int("id", account.ID))

	return account.ID, nil
}

var hookOnce sync.Once

// hookSignals logs the lifecycle signals the coordinator does not log
// itself: state transitions with their generation, and upload requests.
// Records go to the current default logger.
func hookSignals() {
	hookOnce.Do(func() {
		capitan.Hook(loop.StateChanged, func(_ context.Context, e *capitan.Event) {
			gen, _ := loop.KeyGeneration.From(e)
			from, _ := loop.KeyOldState.From(e)
			to, _ := loop.KeyNewState.From(e)
			slog.Debug("dev loop state changed",
				slog.Int("generation", gen),
				slog.String("from", from),
				slog.String("to", to),
			)
		})

		capitan.Hook(loop.UploadRequested, func(_ context.Context, e *capitan.Event) {
			gen, _ := loop.KeyGeneration.From(e)
			slog.Debug("upload requested", slog.Int("generation", gen))
		})
	})
}
