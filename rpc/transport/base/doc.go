// Package base implements the binary driver independent of the network medium.
// Protocol-specific dialing and socket tuning are injected through
// IClientConnector (see the tcp package).
//
// Every gate owns exactly one net connection, which corresponds to one remote
// session. Gates are never pooled or shared and a lost connection is not
// re-established, since the remote session state (open transaction,
// savepoints, prepared statements) would be gone anyway.
//
// Wire Format:
//
// Every frame consists of a 12 byte header followed by the payload:
//
//	| requestID (8 bytes, big endian) | length (4 bytes, big endian) | payload |
//
// The payload is a common.Message encoded with the binary serializer. Right after
// dialing the client sends a Hello message carrying database and credentials, the
// gate is handed out only after a successful Hello response.
//
// Request Handling:
//
//   - A dedicated reader goroutine per gate routes responses to waiting requests
//     by their request ID (xsync.MapOf).
//
//   - Execute waits for the response, the caller's context or the configured
//     timeout, whichever comes first.
//
//   - Cancel sends a Cancel message targeting the request ID of the running
//     statement. It does not wait for the cancel response.
//
//   - If the connection fails, all waiting requests fail immediately and the gate
//     stays unusable.
//
// Thread Safety:
//
//	Execute is meant to be used by a single caller at a time. Cancel and
//	Disconnect may be called concurrently from any goroutine.
package base
