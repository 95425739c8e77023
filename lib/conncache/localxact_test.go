package conncache

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// recorder collects the events fired by LocalTransactions
type recorder struct {
	events []string
	level  func() int
	fail   map[string]error
}

func newRecorder(xacts *LocalTransactions) *recorder {
	r := &recorder{level: xacts.NestLevel, fail: make(map[string]error)}
	xacts.RegisterXactCallback(func(_ context.Context, event XactEvent) error {
		return r.record(event.String())
	})
	xacts.RegisterSubXactCallback(func(_ context.Context, event SubXactEvent) error {
		return r.record("sub" + event.String())
	})
	return r
}

func (r *recorder) record(event string) error {
	name := fmt.Sprintf("%s@%d", event, r.level())
	r.events = append(r.events, name)
	return r.fail[event]
}

func TestLocalTransactionsEvents(t *testing.T) {
	ctx := context.Background()
	xacts := NewLocalTransactions()
	r := newRecorder(xacts)

	steps := []func(context.Context) error{
		xacts.Begin, xacts.Savepoint, xacts.Savepoint, xacts.Release, xacts.RollbackTo, xacts.Savepoint, xacts.Commit,
	}
	for i, step := range steps {
		if err := step(ctx); err != nil {
			t.Fatalf("Step %d failed: %v", i, err)
		}
	}

	expected := []string{
		fmt.Sprintf("%s@1", XactEventBegin),
		fmt.Sprintf("sub%s@2", SubXactEventStart),
		fmt.Sprintf("sub%s@3", SubXactEventStart),
		fmt.Sprintf("sub%s@3", SubXactEventPreCommit),
		fmt.Sprintf("sub%s@3", SubXactEventCommit),
		fmt.Sprintf("sub%s@2", SubXactEventAbort),
		fmt.Sprintf("sub%s@2", SubXactEventStart),
		fmt.Sprintf("sub%s@2", SubXactEventPreCommit),
		fmt.Sprintf("sub%s@2", SubXactEventCommit),
		fmt.Sprintf("%s@1", XactEventPreCommit),
		fmt.Sprintf("%s@1", XactEventCommit),
	}
	if !equalStatements(r.events, expected) {
		t.Errorf("Expected events\n%v\ngot\n%v", expected, r.events)
	}
	if xacts.NestLevel() != 0 {
		t.Errorf("Expected level 0, got %d", xacts.NestLevel())
	}
}

func TestLocalTransactionsAbort(t *testing.T) {
	ctx := context.Background()
	xacts := NewLocalTransactions()
	r := newRecorder(xacts)

	if err := xacts.Abort(ctx); err != nil || len(r.events) != 0 {
		t.Fatalf("Abort without transaction should be a no-op, got %v %v", err, r.events)
	}

	_ = xacts.Begin(ctx)
	_ = xacts.Savepoint(ctx)
	r.fail["sub"+SubXactEventAbort.String()] = errors.New("sub abort failed")
	r.fail[XactEventAbort.String()] = errors.New("abort failed")

	err := xacts.Abort(ctx)
	if err == nil || xacts.NestLevel() != 0 {
		t.Fatalf("Expected joined error and level 0, got %v at level %d", err, xacts.NestLevel())
	}

	// All abort events are fired even though every callback failed
	expected := []string{
		fmt.Sprintf("%s@1", XactEventBegin),
		fmt.Sprintf("sub%s@2", SubXactEventStart),
		fmt.Sprintf("sub%s@2", SubXactEventAbort),
		fmt.Sprintf("%s@1", XactEventAbort),
	}
	if !equalStatements(r.events, expected) {
		t.Errorf("Expected events %v, got %v", expected, r.events)
	}
}

func TestLocalTransactionsFailedCommit(t *testing.T) {
	ctx := context.Background()
	xacts := NewLocalTransactions()
	r := newRecorder(xacts)
	errCommit := errors.New("pre-commit failed")
	r.fail[XactEventPreCommit.String()] = errCommit

	_ = xacts.Begin(ctx)
	if err := xacts.Commit(ctx); !errors.Is(err, errCommit) {
		t.Fatalf("Expected pre-commit error, got %v", err)
	}

	expected := []string{
		fmt.Sprintf("%s@1", XactEventBegin),
		fmt.Sprintf("%s@1", XactEventPreCommit),
		fmt.Sprintf("%s@1", XactEventAbort),
	}
	if !equalStatements(r.events, expected) {
		t.Errorf("Expected events %v, got %v", expected, r.events)
	}
	if xacts.NestLevel() != 0 {
		t.Errorf("Expected level 0, got %d", xacts.NestLevel())
	}
}

func TestLocalTransactionsMisuse(t *testing.T) {
	ctx := context.Background()
	xacts := NewLocalTransactions()

	testCases := []struct {
		name string
		op   func(context.Context) error
	}{
		{"savepoint without transaction", xacts.Savepoint},
		{"release without savepoint", xacts.Release},
		{"rollback without savepoint", xacts.RollbackTo},
		{"commit without transaction", xacts.Commit},
		{"prepare without transaction", xacts.PrepareTransaction},
	}
	for _, tc := range testCases {
		if err := tc.op(ctx); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}

	_ = xacts.Begin(ctx)
	if err := xacts.Begin(ctx); err == nil {
		t.Error("Nested begin should fail")
	}
}
