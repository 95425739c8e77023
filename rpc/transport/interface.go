package transport

import (
	"context"
	"github.com/ValentinKolb/chbridge/rpc/common"
)

// --------------------------------------------------------------------------
// Driver Transport
// --------------------------------------------------------------------------

// IDriverTransport opens connections of one driver kind (http, binary).
// Implementations are stateless apart from their configuration, every call to
// Connect returns a new, independent gate.
type IDriverTransport interface {
	// Kind returns the driver kind served by this transport
	Kind() common.DriverKind
	// Connect opens a new connection described by desc.
	// No retry is attempted, the error of the single attempt is returned.
	Connect(ctx context.Context, desc common.Descriptor) (IGate, error)
}

// --------------------------------------------------------------------------
// Driver Gate
// --------------------------------------------------------------------------

// IGate is a live connection to the remote server together with the operations
// of its driver. A gate is owned by exactly one user at a time, it is not meant
// to be shared between concurrent callers (except for Cancel).
type IGate interface {
	// Kind returns the driver kind of this gate
	Kind() common.DriverKind
	// Execute runs a statement on the remote server and returns the raw result.
	// If ctx is done before the remote answered, the statement may still be running remotely.
	Execute(ctx context.Context, statement string) ([]byte, error)
	// Cancel asks the remote server to cancel the statement currently executing.
	// It reports whether the cancel request was delivered. It may be called concurrently to Execute.
	Cancel() bool
	// Disconnect closes the connection. The gate must not be used afterward.
	Disconnect() error
}
