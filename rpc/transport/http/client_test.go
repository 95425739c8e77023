package http

import (
	"context"
	"errors"
	"github.com/ValentinKolb/chbridge/rpc/common"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeServer mimics the HTTP interface of the remote server
type fakeServer struct {
	*httptest.Server
	started chan struct{} // signaled when a SLEEP statement is running

	mu       sync.Mutex
	sessions []string // session_id and session_timeout of every statement
}

func (fs *fakeServer) sessionLog() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.sessions...)
}

func newFakeServer(t *testing.T) *fakeServer {
	fs := &fakeServer{started: make(chan struct{}, 1)}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Ok.\n"))
	})
	mux.HandleFunc("POST /", func(w http.ResponseWriter, r *http.Request) {
		user, password, ok := r.BasicAuth()
		if ok && (user != "alice" || password != "secret") {
			http.Error(w, "authentication failed", http.StatusUnauthorized)
			return
		}

		query := r.URL.Query()
		fs.mu.Lock()
		fs.sessions = append(fs.sessions, query.Get("session_id")+"/"+query.Get("session_timeout"))
		fs.mu.Unlock()

		body, _ := io.ReadAll(r.Body)
		switch string(body) {
		case "SLEEP":
			fs.started <- struct{}{}
			<-r.Context().Done()
		case "FAIL":
			http.Error(w, "syntax error", http.StatusBadRequest)
		default:
			_, _ = w.Write([]byte(r.URL.Query().Get("database") + ":" + string(body)))
		}
	})

	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

// descriptorFor returns a descriptor pointing to the fake server
func descriptorFor(t *testing.T, fs *fakeServer) common.Descriptor {
	host, portStr, err := net.SplitHostPort(fs.Listener.Addr().String())
	if err != nil {
		t.Fatalf("invalid listener address: %v", err)
	}
	port, _ := strconv.Atoi(portStr)

	desc := common.DefaultDescriptor()
	desc.Host = host
	desc.Port = port
	desc.Database = "analytics"
	return desc
}

func TestConnectAndExecute(t *testing.T) {
	fs := newFakeServer(t)
	desc := descriptorFor(t, fs)
	user, password := "alice", "secret"
	desc.Username, desc.Password = &user, &password

	gate, err := NewHttpDriverTransport(common.DefaultTransportConfig()).Connect(context.Background(), desc)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer gate.Disconnect()

	if gate.Kind() != common.DriverHTTP {
		t.Errorf("Expected kind http, got %s", gate.Kind())
	}

	result, err := gate.Execute(context.Background(), "SELECT 1")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if string(result) != "analytics:SELECT 1" {
		t.Errorf("Unexpected result %q", result)
	}
}

func TestExecuteRemoteError(t *testing.T) {
	fs := newFakeServer(t)

	gate, err := NewHttpDriverTransport(common.DefaultTransportConfig()).Connect(context.Background(), descriptorFor(t, fs))
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer gate.Disconnect()

	_, err = gate.Execute(context.Background(), "FAIL")
	if !common.HasCode(err, common.ErrCRemote) {
		t.Errorf("Expected remote error, got %v", err)
	}
}

func TestWrongCredentials(t *testing.T) {
	fs := newFakeServer(t)
	desc := descriptorFor(t, fs)
	user, password := "alice", "wrong"
	desc.Username, desc.Password = &user, &password

	gate, err := NewHttpDriverTransport(common.DefaultTransportConfig()).Connect(context.Background(), desc)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer gate.Disconnect()

	if _, err := gate.Execute(context.Background(), "SELECT 1"); err == nil {
		t.Error("Expected authentication error")
	}
}

func TestConnectUnreachable(t *testing.T) {
	// Reserve a port and close it again, nothing listens there afterward
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	addr := l.Addr().(*net.TCPAddr)
	_ = l.Close()

	desc := common.DefaultDescriptor()
	desc.Port = addr.Port

	if _, err := NewHttpDriverTransport(common.DefaultTransportConfig()).Connect(context.Background(), desc); err == nil {
		t.Error("Expected connect to fail")
	}
}

func TestCancel(t *testing.T) {
	fs := newFakeServer(t)

	gate, err := NewHttpDriverTransport(common.DefaultTransportConfig()).Connect(context.Background(), descriptorFor(t, fs))
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer gate.Disconnect()

	// Nothing running, nothing to cancel
	if gate.Cancel() {
		t.Error("Cancel without running statement should report false")
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := gate.Execute(context.Background(), "SLEEP")
		errCh <- err
	}()

	select {
	case <-fs.started:
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for statement to start")
	}

	if !gate.Cancel() {
		t.Error("Cancel of running statement should report true")
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for cancelled statement")
	}
}

func TestExecuteAfterDisconnect(t *testing.T) {
	fs := newFakeServer(t)

	gate, err := NewHttpDriverTransport(common.DefaultTransportConfig()).Connect(context.Background(), descriptorFor(t, fs))
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if err := gate.Disconnect(); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}

	if _, err := gate.Execute(context.Background(), "SELECT 1"); err == nil {
		t.Error("Expected error on disconnected gate")
	}
}

func TestStatementsShareSession(t *testing.T) {
	fs := newFakeServer(t)
	config := common.DefaultTransportConfig()
	config.SessionTimeoutSecond = 30
	driver := NewHttpDriverTransport(config)

	first, err := driver.Connect(context.Background(), descriptorFor(t, fs))
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer first.Disconnect()
	second, err := driver.Connect(context.Background(), descriptorFor(t, fs))
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer second.Disconnect()

	for _, statement := range []string{"BEGIN TRANSACTION", "INSERT INTO t VALUES (1)", "COMMIT"} {
		if _, err := first.Execute(context.Background(), statement); err != nil {
			t.Fatalf("Execute %q failed: %v", statement, err)
		}
	}
	if _, err := second.Execute(context.Background(), "SELECT 1"); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	sessions := fs.sessionLog()
	if len(sessions) != 4 {
		t.Fatalf("Expected 4 statements, got %v", sessions)
	}
	if id, timeout, _ := strings.Cut(sessions[0], "/"); id == "" || timeout != "30" {
		t.Errorf("Expected session id with timeout 30, got %q", sessions[0])
	}
	for i := 1; i < 3; i++ {
		if sessions[i] != sessions[0] {
			t.Errorf("Statement %d ran in session %q, expected %q", i, sessions[i], sessions[0])
		}
	}
	if sessions[3] == sessions[0] {
		t.Errorf("Two gates share session %q", sessions[3])
	}
}

func TestSessionTimeoutDisabled(t *testing.T) {
	fs := newFakeServer(t)
	config := common.DefaultTransportConfig()
	config.SessionTimeoutSecond = 0

	gate, err := NewHttpDriverTransport(config).Connect(context.Background(), descriptorFor(t, fs))
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer gate.Disconnect()

	if _, err := gate.Execute(context.Background(), "SELECT 1"); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	sessions := fs.sessionLog()
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 statement, got %v", sessions)
	}
	if id, timeout, _ := strings.Cut(sessions[0], "/"); id == "" || timeout != "" {
		t.Errorf("Expected session id without timeout, got %q", sessions[0])
	}
}
