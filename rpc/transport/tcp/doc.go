// Package tcp provides the TCP connector for the binary driver. It dials the
// remote server and applies the TCPConf and SocketConf settings of the
// TransportConfig to every new socket.
//
// Framing, the handshake and request routing live in the base package, see its
// documentation for details.
package tcp
