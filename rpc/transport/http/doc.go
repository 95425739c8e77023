// Package http implements the http driver: statements are sent as the body of
// POST requests to the HTTP interface of the remote server.
//
// Key Components:
//
//   - httpDriverTransport: Implements transport.IDriverTransport. Connect builds
//     the connection string of the descriptor (credentials are sent as basic auth),
//     creates a dedicated http.Client and probes the /ping endpoint.
//
//   - httpGate: Implements transport.IGate. Every gate owns one keep-alive
//     connection and one server session (session_id), the remote transaction
//     lives in that session. Cancel aborts the request currently executing, which
//     makes the server drop the running query.
//
// Thread Safety:
//
//	A gate is used by one caller at a time. Cancel is the only method that may be
//	called concurrently to Execute.
package http
