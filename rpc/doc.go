// Package rpc is the communication layer between the connection cache and the
// remote ClickHouse server.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures used across the layer, including the
//     connection Descriptor, the transport configuration, the error type, the
//     binary driver Message protocol and logging.
//
//   - transport: The driver gate abstraction (IGate, IDriverTransport) with the
//     http driver and the binary driver (framed messages over TCP).
//
//   - serializer: Message serialization for the binary driver.
package rpc
