package base

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/chbridge/rpc/common"
	"github.com/ValentinKolb/chbridge/rpc/serializer"
	"github.com/ValentinKolb/chbridge/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("transport/binary")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the given endpoint (host:port)
	Connect(ctx context.Context, endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.TransportConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// responseResult contains the result of a request
type responseResult struct {
	data []byte
	err  error
}

// clientTransport opens binary driver gates independent of the
// specific transport medium
type clientTransport struct {
	connector  IClientConnector
	config     common.TransportConfig
	serializer serializer.IRPCSerializer
}

// binaryGate is one session on one net connection. Responses are read by a
// dedicated goroutine and routed to the waiting request by request id.
type binaryGate struct {
	conn         net.Conn
	endpoint     string
	config       common.TransportConfig
	serializer   serializer.IRPCSerializer
	requestChans *xsync.MapOf[uint64, chan responseResult]
	writeMu      sync.Mutex    // Serializes frame writes
	readerDone   chan struct{} // Closed when the reader goroutine exited

	nextRequestID atomic.Uint64
	inFlight      atomic.Uint64 // request id of the executing statement, 0 if idle
	closed        atomic.Bool   // set by Disconnect or when the reader hit an error
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new binary driver transport with the specified connector
func NewBaseClientTransport(connector IClientConnector, config common.TransportConfig) transport.IDriverTransport {
	return &clientTransport{
		connector:  connector,
		config:     config,
		serializer: serializer.NewBinarySerializer(),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IDriverTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Kind() common.DriverKind {
	return common.DriverBinary
}

func (t *clientTransport) Connect(ctx context.Context, desc common.Descriptor) (transport.IGate, error) {
	endpoint := desc.Address()

	// Bound the whole connect (dial + handshake) by the configured timeout
	if timeout := t.config.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn, err := t.connector.Connect(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}

	// Upgrade the connection with protocol-specific settings
	if err := t.connector.UpgradeConnection(conn, t.config); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to upgrade connection to %s: %w", endpoint, err)
	}

	gate := &binaryGate{
		conn:         conn,
		endpoint:     endpoint,
		config:       t.config,
		serializer:   t.serializer,
		requestChans: xsync.NewMapOf[uint64, chan responseResult](),
		readerDone:   make(chan struct{}),
	}

	// Start the response reader
	go gate.readResponses()

	// Handshake: select the database and authenticate
	var user, password string
	if desc.Username != nil {
		user = *desc.Username
	}
	if desc.Password != nil {
		password = *desc.Password
	}
	resp, err := gate.roundTrip(ctx, common.NewHelloRequest(desc.Database, user, password))
	if err == nil && !resp.Ok {
		err = fmt.Errorf("handshake rejected")
	}
	if err != nil {
		_ = gate.Disconnect()
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}

	Logger.Debugf("connected to %s (database %s) using %s transport", endpoint, desc.Database, t.connector.GetName())
	return gate, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IGate)
// --------------------------------------------------------------------------

func (g *binaryGate) Kind() common.DriverKind {
	return common.DriverBinary
}

func (g *binaryGate) Execute(ctx context.Context, statement string) ([]byte, error) {
	resp, err := g.roundTrip(ctx, common.NewQueryRequest(statement))
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (g *binaryGate) Cancel() bool {
	target := g.inFlight.Load()
	if target == 0 || g.closed.Load() {
		return false
	}

	payload, err := g.serializer.Serialize(*common.NewCancelRequest(target))
	if err != nil {
		return false
	}

	// The cancel is fire and forget, its response is dropped by the reader
	if err := g.write(g.nextRequestID.Add(1), payload); err != nil {
		Logger.Warningf("failed to send cancel for request %d to %s: %v", target, g.endpoint, err)
		return false
	}
	return true
}

func (g *binaryGate) Disconnect() error {
	if g.closed.Swap(true) {
		<-g.readerDone
		return nil
	}

	// Closing the connection ends the reader goroutine
	err := g.conn.Close()
	<-g.readerDone
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// roundTrip sends a request and waits for its response. The request id of query
// requests is published in inFlight while waiting, so Cancel can target it.
func (g *binaryGate) roundTrip(ctx context.Context, req *common.Message) (*common.Message, error) {
	// Test if connection is still valid
	if g.closed.Load() {
		return nil, fmt.Errorf("connection to %s is closed", g.endpoint)
	}

	payload, err := g.serializer.Serialize(*req)
	if err != nil {
		return nil, err
	}

	// Register the request before writing, the response may arrive immediately
	requestID := g.nextRequestID.Add(1)
	respCh := make(chan responseResult, 1)
	g.requestChans.Store(requestID, respCh)
	defer g.requestChans.Delete(requestID)

	if req.MsgType == common.MsgTQuery {
		g.inFlight.Store(requestID)
		defer g.inFlight.CompareAndSwap(requestID, 0)
	}

	if err := g.write(requestID, payload); err != nil {
		return nil, err
	}

	// Wait for response, cancellation or timeout
	var timeoutCh <-chan time.Time
	if timeout := g.config.Timeout(); timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	var result responseResult
	select {
	case result = <-respCh:
	case <-g.readerDone:
		// The reader may have failed the pending requests before ours was registered
		select {
		case result = <-respCh:
		default:
			return nil, fmt.Errorf("connection to %s is closed", g.endpoint)
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timeoutCh:
		return nil, fmt.Errorf("request to %s timed out", g.endpoint)
	}
	if result.err != nil {
		return nil, result.err
	}

	// Deserialize the response
	resp := &common.Message{}
	if err := g.serializer.Deserialize(result.data, resp); err != nil {
		return nil, fmt.Errorf("invalid response from %s: %w", g.endpoint, err)
	}

	// Check if the response is an error response
	if resp.MsgType == common.MsgTError || resp.Err != "" {
		return nil, common.NewError(common.ErrCRemote, resp.Err)
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}

	return resp, nil
}

// write sends one frame, frames of concurrent writers (Cancel) never interleave
func (g *binaryGate) write(requestID uint64, payload []byte) error {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	if timeout := g.config.Timeout(); timeout > 0 {
		_ = g.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	return writeFrame(g.conn, requestID, payload)
}

// readResponses reads responses in a loop and distributes them to waiting requests.
// Idle connections have no read deadline, cached sessions may stay idle indefinitely.
func (g *binaryGate) readResponses() {
	defer close(g.readerDone)

	for {
		requestID, data, err := readFrame(g.conn)
		if err != nil {
			// The session is gone, there is no reconnect since remote session state would be lost
			if !g.closed.Swap(true) {
				Logger.Warningf("connection to %s lost: %v", g.endpoint, err)
				_ = g.conn.Close()
			}

			// Fail all waiting requests
			g.requestChans.Range(func(id uint64, ch chan responseResult) bool {
				select {
				case ch <- responseResult{nil, fmt.Errorf("connection to %s lost: %v", g.endpoint, err)}:
				default:
				}
				return true
			})
			return
		}

		// Find the corresponding request channel
		respCh, found := g.requestChans.Load(requestID)
		if !found {
			Logger.Debugf("dropping response for unknown request ID %d", requestID)
			continue
		}

		select {
		case respCh <- responseResult{data, nil}:
		default:
		}
	}
}
