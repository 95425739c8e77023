package conncache

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/chbridge/rpc/common"
	"github.com/ValentinKolb/chbridge/rpc/transport"
	"sync/atomic"
)

// --------------------------------------------------------------------------
// Cache Entry
// --------------------------------------------------------------------------

// Entry is one slot of the cache. The key and the fingerprints are permanent
// for the lifetime of the connection, all other fields are transient and cleared by
// resetTransient whenever a new connection is installed.
type Entry struct {
	key  Key
	gate *trackedGate // nil if not connected

	xactDepth         int  // 0 = no remote transaction, 1 = main transaction, >1 = savepoint levels
	changingXactState bool // a begin/commit/abort against the remote is in progress
	hadError          bool // any subtransaction or the transaction rolled back
	havePrepStmt      bool // prepared statements were created in this session
	invalidated       bool // connection must be remade once the transaction ended

	serverFingerprint  Fingerprint
	mappingFingerprint Fingerprint
}

func newEntry(key Key) *Entry {
	return &Entry{key: key}
}

// resetTransient clears all transaction and invalidation state
func (e *Entry) resetTransient() {
	e.xactDepth = 0
	e.changingXactState = false
	e.hadError = false
	e.havePrepStmt = false
	e.invalidated = false
}

// fingerprint returns the stored fingerprint for the given category
func (e *Entry) fingerprint(category Category) Fingerprint {
	switch category {
	case CategoryServer:
		return e.serverFingerprint
	case CategoryUserMapping:
		return e.mappingFingerprint
	default:
		return 0
	}
}

// state returns a copy of the entry for inspection
func (e *Entry) state() EntryState {
	return EntryState{
		Key:                e.key,
		Connected:          e.gate != nil,
		Suspect:            e.gate != nil && e.gate.suspect.Load(),
		XactDepth:          e.xactDepth,
		ChangingXactState:  e.changingXactState,
		HadError:           e.hadError,
		HavePrepStmt:       e.havePrepStmt,
		Invalidated:        e.invalidated,
		ServerFingerprint:  e.serverFingerprint,
		MappingFingerprint: e.mappingFingerprint,
	}
}

// EntryState is a point in time copy of a cache entry
type EntryState struct {
	Key                Key
	Connected          bool
	Suspect            bool
	XactDepth          int
	ChangingXactState  bool
	HadError           bool
	HavePrepStmt       bool
	Invalidated        bool
	ServerFingerprint  Fingerprint
	MappingFingerprint Fingerprint
}

// String returns a formatted one line representation
func (s EntryState) String() string {
	return fmt.Sprintf("%-12s connected=%-5t depth=%d changing=%-5t error=%-5t prep=%-5t invalidated=%-5t suspect=%t",
		s.Key, s.Connected, s.XactDepth, s.ChangingXactState, s.HadError, s.HavePrepStmt, s.Invalidated, s.Suspect)
}

// --------------------------------------------------------------------------
// Tracked Gate
// --------------------------------------------------------------------------

// trackedGate is the gate handed out by the cache. It wraps the driver gate of
// an entry, tracks whether a statement is outstanding and cancels the remote
// statement when the caller gives up waiting for it.
type trackedGate struct {
	transport.IGate
	outstanding atomic.Bool
	suspect     atomic.Bool // a cancel failed, the session state is unknown
}

func newTrackedGate(gate transport.IGate) *trackedGate {
	return &trackedGate{IGate: gate}
}

// Execute runs the statement. If ctx ends first, the remote statement is cancelled
// and Execute waits until the driver gave up on it, so the session is idle again
// when Execute returns.
func (g *trackedGate) Execute(ctx context.Context, statement string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.outstanding.Store(true)
	defer g.outstanding.Store(false)

	var interrupted atomic.Bool
	cancelDone := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(cancelDone)
		interrupted.Store(true)
		g.cancel()
	})

	data, err := g.IGate.Execute(context.WithoutCancel(ctx), statement)
	if !stop() {
		<-cancelDone
	}

	if interrupted.Load() {
		return nil, fmt.Errorf("statement interrupted: %w", ctx.Err())
	}
	return data, err
}

// Disconnect is reserved to the cache, the entry owns the connection
func (g *trackedGate) Disconnect() error {
	return common.NewError(common.ErrCUnknown, "connection is owned by the connection cache")
}

// cancel asks the remote to cancel the outstanding statement, a failure marks the gate suspect
func (g *trackedGate) cancel() bool {
	if g.IGate.Cancel() {
		return true
	}
	Logger.Warningf("could not cancel the running statement, connection is suspect")
	g.suspect.Store(true)
	return false
}

// close disconnects the driver gate
func (g *trackedGate) close() error {
	return g.IGate.Disconnect()
}
