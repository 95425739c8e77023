package conn

import (
	"github.com/ValentinKolb/chbridge/lib/connfactory"
	"github.com/ValentinKolb/chbridge/rpc/common"
	"github.com/spf13/viper"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakeClickHouse answers pings and records every statement posted to it
type fakeClickHouse struct {
	mu         sync.Mutex
	statements []string
}

func (f *fakeClickHouse) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		_, _ = w.Write([]byte("Ok.\n"))
		return
	}
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.statements = append(f.statements, string(body))
	f.mu.Unlock()

	if string(body) == "FAIL" {
		http.Error(w, "Code: 62. DB::Exception: Syntax error", http.StatusBadRequest)
		return
	}
	_, _ = w.Write([]byte("1\n"))
}

func (f *fakeClickHouse) log() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.statements...)
}

// setupTest points the package state at a fake server
func setupTest(t *testing.T) *fakeClickHouse {
	fake := &fakeClickHouse{}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	t.Cleanup(viper.Reset)

	_, port, _ := net.SplitHostPort(server.Listener.Addr().String())
	serverOptions = []common.Option{{Name: "host", Value: "127.0.0.1"}, {Name: "port", Value: port}}
	userOptions = []common.Option{{Name: "user", Value: "default"}}
	transportConfig = common.DefaultTransportConfig()
	factory = connfactory.NewFactory(transportConfig)
	return fake
}

func TestExecTransaction(t *testing.T) {
	fake := setupTest(t)
	viper.Set("xact", true)
	viper.Set("intent", "write")

	if err := runExec(execCmd, []string{"INSERT INTO t VALUES (1)", "INSERT INTO t VALUES (2)"}); err != nil {
		t.Fatalf("exec failed: %v", err)
	}

	expected := []string{"BEGIN TRANSACTION", "INSERT INTO t VALUES (1)", "INSERT INTO t VALUES (2)", "COMMIT"}
	got := fake.log()
	if len(got) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Statement %d: expected %q, got %q", i, expected[i], got[i])
		}
	}
}

func TestExecFailureAborts(t *testing.T) {
	fake := setupTest(t)
	viper.Set("xact", true)
	viper.Set("intent", "read")

	err := runExec(execCmd, []string{"SELECT 1", "FAIL", "SELECT 2"})
	if !common.HasCode(err, common.ErrCRemote) {
		t.Fatalf("Expected remote error, got %v", err)
	}

	got := fake.log()
	if len(got) != 4 || got[3] != "ROLLBACK" {
		t.Errorf("Expected rollback after failure, got %v", got)
	}
}

func TestExecInvalidIntent(t *testing.T) {
	setupTest(t)
	viper.Set("intent", "sideways")

	if err := runExec(execCmd, []string{"SELECT 1"}); err == nil {
		t.Error("Expected error for invalid intent")
	}
}
