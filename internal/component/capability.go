package component

import (
	"context"
	"net/http"
)

// Decision is a handler's verdict on a file change.
type Decision bool

const (
	// HandledLocally means the component applied the change itself.
	HandledLocally Decision = false

	// UploadRequired means the component cannot apply the change locally
	// and a full project upload is needed.
	UploadRequired Decision = true
)

// String returns the string representation of the decision.
func (d Decision) String() string {
	if d {
		return "upload"
	}

	return "local"
}

// RouteSetter is implemented by handlers that serve HTTP routes on the dev
// server. The returned handler is mounted under the component's base route.
type RouteSetter interface {
	SetupRoute() (http.Handler, error)
}

// ChangeHandler is implemented by handlers that evaluate file changes.
type ChangeHandler interface {
	HandleFileChange(ctx context.Context, path string) (Decision, error)
}

// Cleaner is implemented by handlers that release resources on exit.
type Cleaner interface {
	HandleCleanup(ctx context.Context) error
}

// Capability names as reported by [Capabilities.Names].
const (
	CapabilitySetupRoute       = "setupRoute"
	CapabilityHandleFileChange = "handleFileChange"
	CapabilityHandleCleanup    = "handleCleanup"
)

// Capabilities is the set of optional behaviors a resolved handler exposes.
// A nil member is absent and must not be invoked.
type Capabilities struct {
	SetupRoute       func() (http.Handler, error)
	HandleFileChange func(ctx context.Context, path string) (Decision, error)
	HandleCleanup    func(ctx context.Context) error
}

// CapabilitiesOf records which capability interfaces h implements.
func CapabilitiesOf(h any) Capabilities {
	var caps Capabilities

	if rs, ok := h.(RouteSetter); ok {
		caps.SetupRoute = rs.SetupRoute
	}

	if ch, ok := h.(ChangeHandler); ok {
		caps.HandleFileChange = ch.HandleFileChange
	}

	if cl, ok := h.(Cleaner); ok {
		caps.HandleCleanup = cl.HandleCleanup
	}

	return caps
}

// Empty reports whether no capability is present.
func (c Capabilities) Empty() bool {
	return c.SetupRoute == nil && c.HandleFileChange == nil && c.HandleCleanup == nil
}

// Names returns the names of the present capabilities in a fixed order.
func (c Capabilities) Names() []string {
	names := make([]string, 0, 3)

	if c.SetupRoute != nil {
		names = append(names, CapabilitySetupRoute)
	}

	if c.HandleFileChange != nil {
		names = append(names, CapabilityHandleFileChange)
	}

	if c.HandleCleanup != nil {
		names = append(names, CapabilityHandleCleanup)
	}

	return names
}
