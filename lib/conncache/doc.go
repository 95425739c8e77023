// Package conncache keeps remote connections open across local transactions and
// mirrors the local transaction state onto them.
//
// Connections are keyed by user mapping (Identity) and Intent (read or write), a
// key maps to at most one live connection. Acquire returns the cached connection
// or opens a new one through connfactory, a cache hit does not touch the network.
//
// Remote Transactions:
//
// Inside a local transaction Acquire begins a remote transaction on the connection
// and creates savepoints (s2, s3, ...) until the remote nesting level matches the
// local one. The local transaction manager reports its boundaries through
// OnXactEvent and OnSubXactEvent (see TransactionNotifier and LocalTransactions):
//
//	local               remote
//	BEGIN               -                  (deferred until Acquire)
//	Acquire             BEGIN TRANSACTION
//	SAVEPOINT           -                  (deferred until Acquire)
//	Acquire             SAVEPOINT s2
//	RELEASE             RELEASE SAVEPOINT s2
//	ROLLBACK TO         ROLLBACK TO SAVEPOINT s2, RELEASE SAVEPOINT s2
//	COMMIT              COMMIT
//	ROLLBACK            ROLLBACK
//
// The table shows StandardStatements. ClickHouse has no savepoints, with
// DefaultStatements the savepoint rows send nothing and only the depth is tracked.
//
// Every statement against the remote that changes its transaction state runs with
// the entry marked as changing. If the change does not complete, the remote state
// is unknown. Such a connection is closed at the end of the local transaction, and
// any use before that fails with common.ErrCConnectionLost ("connection to server
// "X" was lost"), which must abort the local transaction. A connection is never
// silently reopened in the middle of a transaction.
//
// Invalidation:
//
// OnMetadataChange may be called from any goroutine when a foreign server or user
// mapping changes. Notifications are queued (util.LockFreeMPSC) and applied by the
// next Acquire, transaction event or snapshot: every connection whose server or
// user mapping fingerprint matches (or all, for fingerprint 0) is marked
// invalidated. Invalidated connections are closed and reopened by Acquire once
// they are outside any remote transaction, a transaction in flight keeps its
// session.
//
// Interrupted Statements:
//
// If the context of Execute on a cached connection ends while the statement is
// running, the statement is cancelled on the remote. If the cancel can not be
// delivered, the connection is treated as suspect and replaced at the next safe
// opportunity.
//
// Thread Safety:
//
//	A Cache belongs to one worker (one local transaction at a time). All methods
//	are safe for concurrent use, but entry state follows the single worker model.
//	OnMetadataChange never blocks.
package conncache
