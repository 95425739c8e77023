package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Transport configuration struct
// --------------------------------------------------------------------------

// SocketConf holds socket buffer settings (binary driver only)
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific settings (binary driver only)
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// TransportConfig holds the tuning parameters shared by all driver transports.
// Connection parameters (host, credentials, ...) are not part of it, they come
// from the Descriptor of each connection.
type TransportConfig struct {
	// TimeoutSecond bounds connect and every single request, 0 disables the timeout
	TimeoutSecond int
	// SessionTimeoutSecond is how long the server keeps an idle session (http driver only)
	SessionTimeoutSecond int
	SocketConf           SocketConf
	TCPConf              TCPConf
}

// DefaultTransportConfig returns the configuration used when nothing else is configured
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		TimeoutSecond:        10,
		SessionTimeoutSecond: 60,
		SocketConf: SocketConf{
			WriteBufferSize: 512 * 1024,
			ReadBufferSize:  512 * 1024,
		},
		TCPConf: TCPConf{
			TCPNoDelay:   true,
			TCPLingerSec: -1,
		},
	}
}

// Timeout returns the configured timeout as duration (0 = none)
func (c *TransportConfig) Timeout() time.Duration {
	if c.TimeoutSecond <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSecond) * time.Second
}

// String returns a formatted string representation of the transport configuration
func (c *TransportConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Transport Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	addSection("HTTP Driver")
	addField("Session Timeout", fmt.Sprintf("%d sec", c.SessionTimeoutSecond))

	addSection("Binary Driver")
	addField("Write Buffer", fmt.Sprintf("%d KB", c.SocketConf.WriteBufferSize/1024))
	addField("Read Buffer", fmt.Sprintf("%d KB", c.SocketConf.ReadBufferSize/1024))
	addField("TCP NoDelay", strconv.FormatBool(c.TCPConf.TCPNoDelay))
	addField("TCP KeepAlive", fmt.Sprintf("%d sec", c.TCPConf.TCPKeepAliveSec))
	addField("TCP Linger", fmt.Sprintf("%d sec", c.TCPConf.TCPLingerSec))

	return sb.String()
}
