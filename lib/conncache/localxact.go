package conncache

import (
	"context"
	"errors"
	"fmt"
)

// LocalTransactions is a minimal local transaction manager implementing
// TransactionNotifier. It tracks the nesting level and fires the boundary events in
// the order a database engine does: pre-commit before commit, subtransactions are
// closed before their parent and a failed commit turns into an abort.
//
// It is not safe for concurrent use, one instance belongs to one worker.
type LocalTransactions struct {
	xactCallbacks    []XactCallback
	subXactCallbacks []SubXactCallback
	level            int
}

// NewLocalTransactions creates a transaction manager without open transaction
func NewLocalTransactions() *LocalTransactions {
	return &LocalTransactions{}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see conncache.TransactionNotifier)
// --------------------------------------------------------------------------

func (t *LocalTransactions) RegisterXactCallback(cb XactCallback) {
	t.xactCallbacks = append(t.xactCallbacks, cb)
}

func (t *LocalTransactions) RegisterSubXactCallback(cb SubXactCallback) {
	t.subXactCallbacks = append(t.subXactCallbacks, cb)
}

func (t *LocalTransactions) NestLevel() int {
	return t.level
}

// --------------------------------------------------------------------------
// Transaction Control
// --------------------------------------------------------------------------

// Begin starts the top level transaction
func (t *LocalTransactions) Begin(ctx context.Context) error {
	if t.level != 0 {
		return fmt.Errorf("there is already a transaction in progress")
	}
	t.level = 1
	return t.fire(ctx, XactEventBegin, false)
}

// Savepoint starts a subtransaction
func (t *LocalTransactions) Savepoint(ctx context.Context) error {
	if t.level == 0 {
		return fmt.Errorf("savepoint can only be used in transaction blocks")
	}
	t.level++
	return t.fireSub(ctx, SubXactEventStart, false)
}

// Release commits the innermost subtransaction. If that fails, the subtransaction is rolled back.
func (t *LocalTransactions) Release(ctx context.Context) error {
	if t.level < 2 {
		return fmt.Errorf("no savepoint to release")
	}

	if err := t.fireSub(ctx, SubXactEventPreCommit, false); err != nil {
		return errors.Join(err, t.RollbackTo(ctx))
	}
	err := t.fireSub(ctx, SubXactEventCommit, false)
	t.level--
	return err
}

// RollbackTo rolls back the innermost subtransaction
func (t *LocalTransactions) RollbackTo(ctx context.Context) error {
	if t.level < 2 {
		return fmt.Errorf("no savepoint to roll back to")
	}
	err := t.fireSub(ctx, SubXactEventAbort, true)
	t.level--
	return err
}

// Commit releases all open subtransactions and commits the top level transaction.
// If any step fails, the whole transaction is aborted and the error is returned.
func (t *LocalTransactions) Commit(ctx context.Context) error {
	if t.level == 0 {
		return fmt.Errorf("there is no transaction in progress")
	}

	for t.level > 1 {
		if err := t.Release(ctx); err != nil {
			return errors.Join(err, t.Abort(ctx))
		}
	}

	if err := t.fire(ctx, XactEventPreCommit, false); err != nil {
		return errors.Join(err, t.Abort(ctx))
	}
	err := t.fire(ctx, XactEventCommit, false)
	t.level = 0
	return err
}

// Abort rolls back all open subtransactions and the top level transaction.
// All callbacks are called even if some of them fail.
func (t *LocalTransactions) Abort(ctx context.Context) error {
	if t.level == 0 {
		return nil
	}

	var errs []error
	for t.level > 1 {
		if err := t.RollbackTo(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	errs = append(errs, t.fire(ctx, XactEventAbort, true))
	t.level = 0
	return errors.Join(errs...)
}

// PrepareTransaction fires the pre-prepare event for a two phase commit. Nothing
// else of two phase commit is implemented, the transaction stays open on success.
func (t *LocalTransactions) PrepareTransaction(ctx context.Context) error {
	if t.level == 0 {
		return fmt.Errorf("there is no transaction in progress")
	}
	return t.fire(ctx, XactEventPrePrepare, false)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// fire calls the top level callbacks in registration order. With all set, every
// callback is called and the errors are joined, otherwise the first error stops.
func (t *LocalTransactions) fire(ctx context.Context, event XactEvent, all bool) error {
	var errs []error
	for _, cb := range t.xactCallbacks {
		if err := cb(ctx, event); err != nil {
			if !all {
				return err
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// fireSub is fire for subtransaction callbacks
func (t *LocalTransactions) fireSub(ctx context.Context, event SubXactEvent, all bool) error {
	var errs []error
	for _, cb := range t.subXactCallbacks {
		if err := cb(ctx, event); err != nil {
			if !all {
				return err
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
