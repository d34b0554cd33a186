package devloop

import "github.com/zoobzio/capitan"

// Lifecycle signals.
var (
	// CycleStarted is emitted when a restart cycle begins launching.
	CycleStarted = capitan.NewSignal(
		"devloop.cycle.started",
		"Restart cycle started",
	)

	// StateChanged is emitted on every coordinator state transition with the
	// current generation.
	StateChanged = capitan.NewSignal(
		"devloop.state.changed",
		"Coordinator state transition",
	)

	// ChangeDetected is emitted when the watcher reports a change.
	ChangeDetected = capitan.NewSignal(
		"devloop.change.detected",
		"Filesystem change detected",
	)

	// UploadRequested is emitted before the project upload starts.
	UploadRequested = capitan.NewSignal(
		"devloop.upload.requested",
		"Full project upload requested",
	)

	// Terminated is emitted once the dev loop has finished.
	Terminated = capitan.NewSignal(
		"devloop.terminated",
		"Dev loop terminated",
	)
)

// Signal field keys.
var (
	// KeyGeneration is the restart cycle number.
	KeyGeneration = capitan.NewIntKey("generation")

	// KeyOldState is the state before a transition.
	KeyOldState = capitan.NewStringKey("old_state")

	// KeyNewState is the state after a transition.
	KeyNewState = capitan.NewStringKey("new_state")

	// KeyPath is the changed filesystem path.
	KeyPath = capitan.NewStringKey("path")

	// KeyOp is the filesystem operation.
	KeyOp = capitan.NewStringKey("op")

	// KeyReason is the termination reason.
	KeyReason = capitan.NewStringKey("reason")

	// KeyError is the error message of a fatal termination.
	KeyError = capitan.NewStringKey("error")
)
