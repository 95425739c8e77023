// Package cmd implements the command-line interface of chbridge. It is a thin
// tool around the library packages to check connection settings against a
// running ClickHouse server.
//
// The package is organized into several subpackages:
//
//   - conn: Commands to resolve options, open connections, run statements through
//     the connection cache and benchmark the connection layer
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Options are given as repeated name=value flags, e.g.
//
//	chbridge conn exec --server-option host=ch.local --server-option driver=binary \
//	    --user-option user=default --xact "INSERT INTO t VALUES (1)"
//
// Every flag can also be set by an environment variable CHBRIDGE_<flag> (e.g.
// CHBRIDGE_TIMEOUT=5), .env and .env.local files are loaded on startup.
//
// See chbridge -help for a list of all commands.
package cmd
