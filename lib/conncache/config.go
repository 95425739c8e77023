package conncache

import (
	"fmt"
	"strings"
)

// Statements holds the remote statements used to mirror the local transaction
// state. Savepoint statements are format strings taking the savepoint level.
// An empty statement is not sent, the bookkeeping happens anyway.
type Statements struct {
	Begin               string
	Commit              string
	Rollback            string
	Savepoint           string
	ReleaseSavepoint    string
	RollbackToSavepoint string
	// DeallocateAll drops prepared statements after a failed transaction, empty disables it
	DeallocateAll string
}

// DefaultStatements returns the transaction control statements ClickHouse accepts.
// ClickHouse has no savepoints, so subtransactions are only tracked locally and a
// rollback to savepoint leaves the remote work of the subtransaction in place.
func DefaultStatements() Statements {
	return Statements{
		Begin:    "BEGIN TRANSACTION",
		Commit:   "COMMIT",
		Rollback: "ROLLBACK",
	}
}

// StandardStatements returns the SQL standard statement set including savepoints,
// for remote servers that support them. Every statement is sent on its own, a
// rollback to savepoint is followed by the release of the same savepoint.
func StandardStatements() Statements {
	return Statements{
		Begin:               "BEGIN TRANSACTION",
		Commit:              "COMMIT",
		Rollback:            "ROLLBACK",
		Savepoint:           "SAVEPOINT s%d",
		ReleaseSavepoint:    "RELEASE SAVEPOINT s%d",
		RollbackToSavepoint: "ROLLBACK TO SAVEPOINT s%d",
	}
}

// savepoint renders a savepoint statement for the given level
func savepoint(format string, level int) string {
	if format == "" {
		return ""
	}
	args := make([]interface{}, strings.Count(format, "%d"))
	for i := range args {
		args[i] = level
	}
	return fmt.Sprintf(format, args...)
}

// Config holds the settings of a Cache
type Config struct {
	Statements Statements

	// Notification points the cache registers with on first use, both are optional.
	// Without transaction notifier no remote transactions are opened (autocommit).
	TransactionNotifier TransactionNotifier
	MetadataNotifier    MetadataNotifier
}

// DefaultConfig returns a configuration without notification points
func DefaultConfig() Config {
	return Config{
		Statements: DefaultStatements(),
	}
}
