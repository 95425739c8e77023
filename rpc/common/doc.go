// Package common provides core data structures and utilities shared by the
// connection factory, the driver transports and the connection cache.
//
// The package focuses on:
//   - Connection descriptors and the options they are built from
//   - Transport tuning configuration
//   - The message protocol spoken by the binary driver
//   - The error type (with error codes) returned across the bridge
//   - Custom logging implementation integrated with Dragonboat's logger
//
// Key Components:
//
//   - Descriptor: Parameters of one remote connection (driver kind, host, port,
//     database, optional credentials). Also renders the http connection string.
//
//   - TransportConfig: Timeout and socket settings shared by all transports.
//
//   - Message: Request/response structure of the binary driver. Includes
//     factory methods for the handshake, query and cancel messages.
//
//   - Error: Error type carrying an ErrCode. Fatal errors (configuration errors,
//     lost connections) must abort the enclosing local transaction.
//
//   - Logger: Custom logging implementation that integrates with Dragonboat's
//     logging system while providing consistent formatting across the application.
package common
