package conncache

import (
	"context"
	"errors"
	"github.com/ValentinKolb/chbridge/lib/connfactory"
	"github.com/ValentinKolb/chbridge/rpc/common"
	"github.com/ValentinKolb/chbridge/rpc/transport"
	"sync"
	"testing"
)

// --------------------------------------------------------------------------
// Fake Driver
// --------------------------------------------------------------------------

var errSimulated = errors.New("simulated connect failure")

// fakeDriver opens fakeGates and records every connect
type fakeDriver struct {
	mu         sync.Mutex
	gates      []*fakeGate
	connectErr error
	failing    map[string]bool // statements failing on every gate
	cancelOK   bool            // result of Cancel on new gates
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{failing: make(map[string]bool), cancelOK: true}
}

func (d *fakeDriver) Kind() common.DriverKind { return common.DriverHTTP }

func (d *fakeDriver) Connect(_ context.Context, desc common.Descriptor) (transport.IGate, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connectErr != nil {
		return nil, d.connectErr
	}
	g := &fakeGate{
		driver:    d,
		desc:      desc,
		cancelOK:  d.cancelOK,
		started:   make(chan struct{}, 1),
		cancelled: make(chan struct{}),
	}
	d.gates = append(d.gates, g)
	return g, nil
}

// connects returns the number of successful connects
func (d *fakeDriver) connects() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.gates)
}

// fail makes statement fail on all gates (or succeed again if fail is false)
func (d *fakeDriver) fail(statement string, fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failing[statement] = fail
}

func (d *fakeDriver) isFailing(statement string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.failing[statement]
}

// fakeGate records statements. The statement SLEEP blocks until it is cancelled.
type fakeGate struct {
	driver    *fakeDriver
	desc      common.Descriptor
	cancelOK  bool
	started   chan struct{}
	cancelled chan struct{}

	mu           sync.Mutex
	statements   []string
	disconnected bool
	cancelOnce   sync.Once
}

func (g *fakeGate) Kind() common.DriverKind { return common.DriverHTTP }

func (g *fakeGate) Execute(_ context.Context, statement string) ([]byte, error) {
	g.mu.Lock()
	if g.disconnected {
		g.mu.Unlock()
		return nil, errors.New("gate is disconnected")
	}
	g.statements = append(g.statements, statement)
	g.mu.Unlock()

	if statement == "SLEEP" {
		g.started <- struct{}{}
		<-g.cancelled
		return nil, common.NewError(common.ErrCRemote, "query cancelled")
	}
	if g.driver.isFailing(statement) {
		return nil, common.NewError(common.ErrCRemote, "statement failed: "+statement)
	}
	return []byte("ok"), nil
}

// Cancel always releases a pending SLEEP but only reports success if cancelOK is set
func (g *fakeGate) Cancel() bool {
	g.cancelOnce.Do(func() { close(g.cancelled) })
	return g.cancelOK
}

func (g *fakeGate) Disconnect() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.disconnected = true
	return nil
}

func (g *fakeGate) isDisconnected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.disconnected
}

// log returns a copy of all statements executed on the gate
func (g *fakeGate) log() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.statements...)
}

// --------------------------------------------------------------------------
// Test Environment
// --------------------------------------------------------------------------

const (
	serverA ServerID = 1
	serverB ServerID = 2

	aliceOnA Identity = 10 // user mapping of alice for server A
	bobOnA   Identity = 11 // user mapping of bob for server A
	aliceOnB Identity = 20 // user mapping of alice for server B
)

type testEnv struct {
	catalog *MapCatalog
	driver  *fakeDriver
	xacts   *LocalTransactions
	cache   *Cache
}

// newTestEnv creates a cache wired to an in-memory catalog, a local transaction
// manager and the fake driver speaking the standard statement set. opts may
// change the cache configuration.
func newTestEnv(t *testing.T, opts ...func(*Config)) *testEnv {
	catalog := NewMapCatalog()
	catalog.PutServer(ForeignServer{ID: serverA, Name: "clickhouse_a", Options: []common.Option{
		{Name: "host", Value: "ch-a.local"},
		{Name: "dbname", Value: "analytics"},
	}})
	catalog.PutServer(ForeignServer{ID: serverB, Name: "clickhouse_b", Options: []common.Option{
		{Name: "host", Value: "ch-b.local"},
		{Name: "port", Value: "9000"},
	}})
	catalog.PutUserMapping(UserMapping{ID: aliceOnA, ServerID: serverA, Options: []common.Option{
		{Name: "user", Value: "alice"},
		{Name: "password", Value: "secret"},
	}})
	catalog.PutUserMapping(UserMapping{ID: bobOnA, ServerID: serverA})
	catalog.PutUserMapping(UserMapping{ID: aliceOnB, ServerID: serverB})

	driver := newFakeDriver()
	xacts := NewLocalTransactions()

	config := DefaultConfig()
	config.Statements = StandardStatements()
	config.TransactionNotifier = xacts
	config.MetadataNotifier = catalog
	for _, opt := range opts {
		opt(&config)
	}

	cache := NewCache(catalog, connfactory.NewFactoryWithDrivers(driver), config)
	t.Cleanup(cache.Close)

	return &testEnv{catalog: catalog, driver: driver, xacts: xacts, cache: cache}
}

// acquire calls Acquire and fails the test on error
func (e *testEnv) acquire(t *testing.T, identity Identity, intent Intent) transport.IGate {
	t.Helper()
	gate, err := e.cache.Acquire(context.Background(), identity, intent, false)
	if err != nil {
		t.Fatalf("Acquire(%d, %s) failed: %v", identity, intent, err)
	}
	return gate
}

// state returns the snapshot of an entry and fails the test if it does not exist
func (e *testEnv) state(t *testing.T, identity Identity, intent Intent) EntryState {
	t.Helper()
	state, ok := e.cache.Snapshot(Key{Identity: identity, Intent: intent})
	if !ok {
		t.Fatalf("No entry for %d/%s", identity, intent)
	}
	return state
}

// entry returns the cache entry for key, callers must not race with the cache
func (e *testEnv) entry(t *testing.T, identity Identity, intent Intent) *Entry {
	t.Helper()
	entry, ok := e.cache.entries.Load(Key{Identity: identity, Intent: intent})
	if !ok {
		t.Fatalf("No entry for %d/%s", identity, intent)
	}
	return entry
}

// rawGate returns the fake gate behind a gate returned by Acquire
func rawGate(t *testing.T, gate transport.IGate) *fakeGate {
	t.Helper()
	tracked, ok := gate.(*trackedGate)
	if !ok {
		t.Fatalf("Unexpected gate type %T", gate)
	}
	return tracked.IGate.(*fakeGate)
}

// equalStatements compares statement logs
func equalStatements(got, expected []string) bool {
	if len(got) != len(expected) {
		return false
	}
	for i := range got {
		if got[i] != expected[i] {
			return false
		}
	}
	return true
}
