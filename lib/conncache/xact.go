package conncache

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/chbridge/rpc/common"
)

// --------------------------------------------------------------------------
// Remote Transaction Begin
// --------------------------------------------------------------------------

// beginRemoteXact starts a remote transaction and creates savepoints until the
// remote nesting level matches the local one. Outside a local transaction
// nothing happens. c.mu must be held.
func (c *Cache) beginRemoteXact(ctx context.Context, entry *Entry) error {
	curlevel := c.nestLevel()
	if curlevel == 0 || entry.xactDepth >= curlevel {
		return nil
	}

	// Nothing is sent on a done context, the remote state stays known
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cannot start remote transaction on connection %s: %w", entry.key, err)
	}

	// Start main transaction if we haven't yet
	if entry.xactDepth <= 0 {
		Logger.Debugf("starting remote transaction on connection %s", entry.key)
		entry.changingXactState = true
		if err := c.exec(ctx, entry, c.statements.Begin); err != nil {
			return err
		}
		entry.xactDepth = 1
		entry.changingXactState = false
	}

	// If we're in a subtransaction, stack up savepoints to match our level
	for entry.xactDepth < curlevel {
		entry.changingXactState = true
		if err := c.exec(ctx, entry, savepoint(c.statements.Savepoint, entry.xactDepth+1)); err != nil {
			return err
		}
		entry.xactDepth++
		entry.changingXactState = false
	}

	return nil
}

// --------------------------------------------------------------------------
// Top Level Transaction Events
// --------------------------------------------------------------------------

// OnXactEvent closes the remote transactions at the end of the local top level
// transaction. Pre-commit (and commit) commits them, abort rolls them back and
// pre-prepare fails since remote transactions can not take part in a two phase
// commit. Afterward every connection is out of its transaction, connections in an
// unknown state are closed.
//
// An error of pre-commit must be followed by an abort event.
func (c *Cache) OnXactEvent(ctx context.Context, event XactEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.applyInvalidations()

	// Remote transactions are begun lazily by Acquire
	if event == XactEventBegin {
		return nil
	}

	// Quick exit if no connections were touched in this transaction
	if !c.xactGotConnection {
		return nil
	}

	var err error
	c.entries.Range(func(_ Key, entry *Entry) bool {
		// Ignore cache entry if no open connection right now
		if entry.gate == nil {
			return true
		}

		// If it has an open remote transaction, try to close it
		if entry.xactDepth > 0 {
			if err = c.endRemoteXact(ctx, entry, event); err != nil {
				return false
			}
		}

		// Reset state to show we're out of a transaction
		entry.xactDepth = 0

		// If the connection isn't in a good idle state, discard it
		if entry.gate != nil && (entry.changingXactState || entry.gate.suspect.Load()) {
			Logger.Infof("discarding connection %s", entry.key)
			c.disconnect(entry, reasonXactEnd)
		}
		return true
	})
	if err != nil {
		return err
	}

	// Regardless of the event type, we can now mark ourselves as out of the transaction
	c.xactGotConnection = false

	// Also reset cursor numbering for next transaction
	c.cursorNumber = 0

	return nil
}

// endRemoteXact handles a top level event for one entry with open remote transaction
func (c *Cache) endRemoteXact(ctx context.Context, entry *Entry, event XactEvent) error {
	switch event {
	case XactEventPreCommit, XactEventCommit:
		// If abort cleanup previously failed for this connection, we can't issue any more commands against it
		if err := c.checkSane(entry); err != nil {
			return err
		}

		// Commit all remote transactions during pre-commit
		entry.changingXactState = true
		if err := c.exec(ctx, entry, c.statements.Commit); err != nil {
			return err
		}
		entry.changingXactState = false

		// Prepared statements may have been lost track of after a rolled back subtransaction
		if entry.havePrepStmt && entry.hadError {
			if err := c.exec(ctx, entry, c.statements.DeallocateAll); err != nil {
				return err
			}
		}
		entry.havePrepStmt = false
		entry.hadError = false
		return nil

	case XactEventPrePrepare:
		return common.NewError(common.ErrCUnsupported, "cannot prepare a transaction that has operated on remote connections")

	case XactEventAbort:
		// Assume we might have lost track of prepared statements
		entry.hadError = true

		// Already known to be in an unknown state, it is discarded below
		if entry.changingXactState {
			return nil
		}
		c.abortRemote(ctx, entry, true, c.statements.Rollback)
		return nil

	default:
		return nil
	}
}

// --------------------------------------------------------------------------
// Subtransaction Events
// --------------------------------------------------------------------------

// OnSubXactEvent releases or rolls back the savepoints belonging to the local
// subtransaction that ends.
func (c *Cache) OnSubXactEvent(ctx context.Context, event SubXactEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.applyInvalidations()

	// Nothing to do at subxact start (savepoints are created lazily by Acquire),
	// nor after commit (savepoints were released during pre-commit)
	if event != SubXactEventPreCommit && event != SubXactEventAbort {
		return nil
	}

	// Quick exit if no connections were touched in this transaction
	if !c.xactGotConnection {
		return nil
	}

	curlevel := c.nestLevel()

	var err error
	c.entries.Range(func(_ Key, entry *Entry) bool {
		// We only care about connections with open remote subtransactions of the current level
		if entry.gate == nil || entry.xactDepth < curlevel {
			return true
		}

		if entry.xactDepth > curlevel {
			err = common.NewError(common.ErrCUnknown, fmt.Sprintf("missed cleaning up remote subtransaction at level %d", entry.xactDepth))
			return false
		}

		if event == SubXactEventPreCommit {
			// If abort cleanup previously failed for this connection, we can't issue any more commands against it
			if err = c.checkSane(entry); err != nil {
				return false
			}

			// Commit all remote subtransactions during pre-commit
			entry.changingXactState = true
			if err = c.exec(ctx, entry, savepoint(c.statements.ReleaseSavepoint, curlevel)); err != nil {
				return false
			}
			entry.changingXactState = false
		} else {
			// Assume we might have lost track of prepared statements
			entry.hadError = true

			// Entries already in an unknown state are discarded at the end of the transaction
			if !entry.changingXactState {
				c.abortRemote(ctx, entry, false,
					savepoint(c.statements.RollbackToSavepoint, curlevel),
					savepoint(c.statements.ReleaseSavepoint, curlevel))
			}
		}

		// OK, we're outta that level of subtransaction
		entry.xactDepth--
		return true
	})

	return err
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// abortRemote cancels an outstanding statement and runs the rollback statements in order.
// For the top level transaction prepared statements are dropped as well. The
// cleanup is not bound to ctx, the abort is often caused by ctx ending. If any
// step fails, changingXactState stays set and the connection is discarded at the
// end of the top level transaction.
func (c *Cache) abortRemote(ctx context.Context, entry *Entry, topLevel bool, rollback ...string) {
	ctx = context.WithoutCancel(ctx)
	entry.changingXactState = true

	// If a command has been submitted to the remote server, cancel it first
	if entry.gate.outstanding.Load() && !entry.gate.cancel() {
		return
	}

	for _, statement := range rollback {
		if err := c.exec(ctx, entry, statement); err != nil {
			Logger.Warningf("abort cleanup failed on connection %s: %v", entry.key, err)
			return
		}
	}
	if topLevel && entry.havePrepStmt && entry.hadError {
		if err := c.exec(ctx, entry, c.statements.DeallocateAll); err != nil {
			Logger.Warningf("abort cleanup failed on connection %s: %v", entry.key, err)
			return
		}
		entry.havePrepStmt = false
		entry.hadError = false
	}

	entry.changingXactState = false
}

// exec runs a transaction control statement, empty statements are skipped
func (c *Cache) exec(ctx context.Context, entry *Entry, statement string) error {
	if statement == "" {
		return nil
	}
	if _, err := entry.gate.Execute(ctx, statement); err != nil {
		return common.WrapError(common.ErrCRemote, err, "%q failed on connection %s", statement, entry.key)
	}
	return nil
}
