package devloop

// State is a coordinator lifecycle state.
type State int32

const (
	// StateIdle is the state before Run is called.
	StateIdle State = iota

	// StateLaunching means a server and watcher are being started.
	StateLaunching

	// StateRunning means both the server and the watcher are ready.
	StateRunning

	// StateTearingDown means the watcher and then the server are closing.
	StateTearingDown

	// StateDeciding means the change is being dispatched to the components
	// and, if required, uploaded.
	StateDeciding

	// StateTerminating is absorbing: cleanup runs and Run returns.
	StateTerminating
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLaunching:
		return "launching"
	case StateRunning:
		return "running"
	case StateTearingDown:
		return "tearing-down"
	case StateDeciding:
		return "deciding"
	case StateTerminating:
		return "terminating"
	default:
		return "unknown"
	}
}
