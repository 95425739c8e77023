package http

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/chbridge/rpc/common"
	"github.com/ValentinKolb/chbridge/rpc/transport"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

var Logger = logger.GetLogger("transport/http")

// NewHttpDriverTransport creates the transport for the http driver kind
func NewHttpDriverTransport(config common.TransportConfig) transport.IDriverTransport {
	return &httpDriverTransport{config: config}
}

type httpDriverTransport struct {
	config common.TransportConfig
}

// httpGate is a single http "connection". The server keeps no state per tcp
// connection, so every request carries the session id of the gate. Statements of
// one gate share one server session (and with it the open transaction).
type httpGate struct {
	serverURL      *url.URL
	database       string
	sessionID      string
	sessionTimeout int // seconds, 0 keeps the server default
	client         *http.Client

	mu       sync.Mutex
	inFlight context.CancelFunc // cancels the request currently executing, nil if idle
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IDriverTransport)
// --------------------------------------------------------------------------

func (t *httpDriverTransport) Kind() common.DriverKind {
	return common.DriverHTTP
}

func (t *httpDriverTransport) Connect(ctx context.Context, desc common.Descriptor) (transport.IGate, error) {
	// Parse the connection string (credentials are embedded as url userinfo)
	serverURL, err := url.Parse(desc.ConnString())
	if err != nil {
		return nil, err
	}

	// Create client with a dedicated transport, so every gate owns its own connection
	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        1,
			MaxIdleConnsPerHost: 1,
			IdleConnTimeout:     90 * time.Second,
		},
		Timeout: t.config.Timeout(),
	}

	gate := &httpGate{
		serverURL:      serverURL,
		database:       desc.Database,
		sessionID:      uuid.NewString(),
		sessionTimeout: t.config.SessionTimeoutSecond,
		client:         client,
	}

	// Make sure the server is reachable before handing out the gate
	if err := gate.ping(ctx); err != nil {
		_ = gate.Disconnect()
		return nil, fmt.Errorf("failed to connect to %s: %w", serverURL.Redacted(), err)
	}

	Logger.Debugf("connected to %s (database %s, session %s)", serverURL.Redacted(), desc.Database, gate.sessionID)
	return gate, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IGate)
// --------------------------------------------------------------------------

func (g *httpGate) Kind() common.DriverKind {
	return common.DriverHTTP
}

func (g *httpGate) Execute(ctx context.Context, statement string) ([]byte, error) {
	// Check if the gate is still connected
	if g.client == nil {
		return nil, fmt.Errorf("http gate is disconnected")
	}

	// Register the request so Cancel can abort it
	reqCtx, cancel := context.WithCancel(ctx)
	g.mu.Lock()
	g.inFlight = cancel
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.inFlight = nil
		g.mu.Unlock()
		cancel()
	}()

	// Create the complete URL
	requestURL := *g.serverURL
	query := requestURL.Query()
	query.Set("database", g.database)
	query.Set("session_id", g.sessionID)
	if g.sessionTimeout > 0 {
		query.Set("session_timeout", strconv.Itoa(g.sessionTimeout))
	}
	requestURL.RawQuery = query.Encode()

	// Create the request, the statement is sent as body
	httpRequest, err := http.NewRequestWithContext(reqCtx, http.MethodPost, requestURL.String(), strings.NewReader(statement))
	if err != nil {
		return nil, err
	}

	httpResponse, err := g.client.Do(httpRequest)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := httpResponse.Body.Close(); err != nil {
			Logger.Errorf("Failed to close response body: %v", err)
		}
	}()

	// Read the response body
	body, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, err
	}

	// Check if the response status code is OK
	if httpResponse.StatusCode != http.StatusOK {
		return nil, common.NewError(common.ErrCRemote,
			fmt.Sprintf("http error: %s: %s", httpResponse.Status, strings.TrimSpace(string(body))))
	}

	return body, nil
}

func (g *httpGate) Cancel() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Aborting the request closes its connection, the server cancels the query on disconnect
	if g.inFlight == nil {
		return false
	}
	g.inFlight()
	return true
}

func (g *httpGate) Disconnect() error {
	// Close the client
	if g.client != nil {
		g.client.CloseIdleConnections()
	}

	// Reset the client
	g.client = nil
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// ping checks the health endpoint of the server
func (g *httpGate) ping(ctx context.Context) error {
	pingURL := g.serverURL.JoinPath("ping")

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodGet, pingURL.String(), nil)
	if err != nil {
		return err
	}

	httpResponse, err := g.client.Do(httpRequest)
	if err != nil {
		return err
	}
	defer httpResponse.Body.Close()

	// Drain the body so the connection can be reused
	_, _ = io.Copy(io.Discard, httpResponse.Body)

	if httpResponse.StatusCode != http.StatusOK {
		return fmt.Errorf("http error: %s", httpResponse.Status)
	}
	return nil
}
