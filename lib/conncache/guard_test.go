package conncache

import (
	"context"
	"errors"
	"github.com/ValentinKolb/chbridge/rpc/common"
	"strings"
	"testing"
)

func TestCheckSaneHealthyEntry(t *testing.T) {
	env := newTestEnv(t)
	env.acquire(t, aliceOnA, IntentWrite)

	env.cache.mu.Lock()
	err := env.cache.checkSane(env.entry(t, aliceOnA, IntentWrite))
	env.cache.mu.Unlock()

	if err != nil {
		t.Errorf("Healthy entry should pass, got %v", err)
	}
	if !env.state(t, aliceOnA, IntentWrite).Connected {
		t.Error("Healthy entry must keep its gate")
	}
}

func TestCheckSaneChangingEntry(t *testing.T) {
	env := newTestEnv(t)
	gate := env.acquire(t, aliceOnA, IntentWrite)

	// Simulate an interrupted state change
	env.cache.mu.Lock()
	entry := env.entry(t, aliceOnA, IntentWrite)
	entry.changingXactState = true
	err := env.cache.checkSane(entry)
	env.cache.mu.Unlock()

	if !common.HasCode(err, common.ErrCConnectionLost) || !common.IsFatal(err) {
		t.Fatalf("Expected fatal connection lost error, got %v", err)
	}
	if !strings.Contains(err.Error(), `connection to server "clickhouse_a" was lost`) {
		t.Errorf("Unexpected message: %v", err)
	}
	if !rawGate(t, gate).isDisconnected() {
		t.Error("Gate should be disconnected")
	}
	if env.state(t, aliceOnA, IntentWrite).Connected {
		t.Error("Entry must be left without gate")
	}
}

func TestAcquireRejectsChangingEntry(t *testing.T) {
	env := newTestEnv(t)
	old := env.acquire(t, aliceOnA, IntentWrite)

	env.cache.mu.Lock()
	env.entry(t, aliceOnA, IntentWrite).changingXactState = true
	env.cache.mu.Unlock()

	_, err := env.cache.Acquire(context.Background(), aliceOnA, IntentWrite, false)
	if !common.HasCode(err, common.ErrCConnectionLost) {
		t.Fatalf("Expected connection lost, got %v", err)
	}
	if !rawGate(t, old).isDisconnected() {
		t.Error("Gate should be disconnected")
	}

	// The following acquire starts over with a new connection
	if env.acquire(t, aliceOnA, IntentWrite) == old {
		t.Error("Expected a new gate")
	}
	if state := env.state(t, aliceOnA, IntentWrite); state.ChangingXactState {
		t.Errorf("New connection must start clean, got %v", state)
	}
	if env.driver.connects() != 2 {
		t.Errorf("Expected 2 connects, got %d", env.driver.connects())
	}
}

func TestBeginFailureIsFatalOnNextUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.driver.fail("BEGIN TRANSACTION", true)

	if err := env.xacts.Begin(ctx); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	_, err := env.cache.Acquire(ctx, aliceOnA, IntentWrite, false)
	if !common.HasCode(err, common.ErrCRemote) {
		t.Fatalf("Expected remote error, got %v", err)
	}
	state := env.state(t, aliceOnA, IntentWrite)
	if !state.Connected || !state.ChangingXactState || state.XactDepth != 0 {
		t.Errorf("Expected connected entry stuck in state change, got %v", state)
	}

	// Even if the remote recovered, the state of the session is unknown
	env.driver.fail("BEGIN TRANSACTION", false)
	_, err = env.cache.Acquire(ctx, aliceOnA, IntentWrite, false)
	if !common.HasCode(err, common.ErrCConnectionLost) {
		t.Fatalf("Expected connection lost, got %v", err)
	}

	if err := env.xacts.Abort(ctx); err != nil {
		t.Errorf("Abort failed: %v", err)
	}

	// After the abort everything works again
	if err := env.xacts.Begin(ctx); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	gate := env.acquire(t, aliceOnA, IntentWrite)
	if err := env.xacts.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if log := rawGate(t, gate).log(); !equalStatements(log, []string{"BEGIN TRANSACTION", "COMMIT"}) {
		t.Errorf("Unexpected statements %v", log)
	}
}

func TestChangingEntryDiscardedOnAbort(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.driver.fail("BEGIN TRANSACTION", true)

	if err := env.xacts.Begin(ctx); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if _, err := env.cache.Acquire(ctx, aliceOnA, IntentWrite, false); err == nil {
		t.Fatal("Expected begin failure")
	}
	gate := rawGate(t, env.entry(t, aliceOnA, IntentWrite).gate)

	if err := env.xacts.Abort(ctx); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}

	if !gate.isDisconnected() {
		t.Error("Connection in unknown state should be discarded at the end of the transaction")
	}
	// No rollback is sent to a session in unknown state
	if log := gate.log(); !equalStatements(log, []string{"BEGIN TRANSACTION"}) {
		t.Errorf("Unexpected statements %v", log)
	}
}

func TestAcquireWithDoneContextKeepsState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if err := env.xacts.Begin(ctx); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	gate := rawGate(t, env.acquire(t, aliceOnA, IntentWrite))
	if err := env.xacts.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if err := env.xacts.Begin(ctx); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	done, cancel := context.WithCancel(ctx)
	cancel()
	_, err := env.cache.Acquire(done, aliceOnA, IntentWrite, false)
	if !errors.Is(err, context.Canceled) || common.HasCode(err, common.ErrCRemote) || common.IsFatal(err) {
		t.Fatalf("Expected plain context error, got %v", err)
	}
	if state := env.state(t, aliceOnA, IntentWrite); state.ChangingXactState || state.XactDepth != 0 {
		t.Errorf("Nothing was sent, expected untouched entry, got %v", state)
	}

	// The connection is still healthy and begins its transaction on the next use
	if again := rawGate(t, env.acquire(t, aliceOnA, IntentWrite)); again != gate {
		t.Error("Expected the cached connection")
	}
	if err := env.xacts.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	expected := []string{"BEGIN TRANSACTION", "COMMIT", "BEGIN TRANSACTION", "COMMIT"}
	if log := gate.log(); !equalStatements(log, expected) {
		t.Errorf("Expected %v, got %v", expected, log)
	}
}
