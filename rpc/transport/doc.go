// Package transport defines the driver abstraction used to talk to the remote
// database server. It provides a common contract that both driver kinds fulfill,
// so the connection cache never depends on a concrete protocol.
//
// Key Components:
//
//   - IDriverTransport: opens connections for one driver kind.
//
//   - IGate: a live connection plus its operation table (execute, cancel,
//     disconnect). The connection cache owns every gate it hands out.
//
// Implementations:
//
//   - http: statements are posted to the remote HTTP interface.
//   - tcp (built on base): framed binary protocol over a single TCP connection.
package transport
