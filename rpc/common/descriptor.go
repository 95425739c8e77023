package common

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
)

// --------------------------------------------------------------------------
// Driver Kinds
// --------------------------------------------------------------------------

// DriverKind selects the transport used to reach the remote server.
type DriverKind string

const (
	DriverHTTP   DriverKind = "http"
	DriverBinary DriverKind = "binary"
)

// Valid reports whether the kind names one of the known transports
func (k DriverKind) Valid() bool {
	return k == DriverHTTP || k == DriverBinary
}

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Option is a single named setting attached to a foreign server or user mapping.
// Options are kept as ordered lists, later entries override earlier ones.
type Option struct {
	Name  string
	Value string
}

// --------------------------------------------------------------------------
// Connection Descriptor
// --------------------------------------------------------------------------

const (
	DefaultHost     = "127.0.0.1"
	DefaultPort     = 8123
	DefaultDatabase = "default"
	DefaultDriver   = DriverHTTP
)

// Descriptor holds everything needed to open one connection to the remote server.
// Username and Password are optional, nil means "not specified".
type Descriptor struct {
	Driver   DriverKind
	Host     string
	Port     int
	Database string
	Username *string
	Password *string
}

// DefaultDescriptor returns a descriptor with all defaults applied
func DefaultDescriptor() Descriptor {
	return Descriptor{
		Driver:   DefaultDriver,
		Host:     DefaultHost,
		Port:     DefaultPort,
		Database: DefaultDatabase,
	}
}

// Address returns host:port of the remote server
func (d Descriptor) Address() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// ConnString builds the http connection string with embedded credentials.
// The password segment is omitted without a password, the user segment without a user.
func (d Descriptor) ConnString() string {
	u := url.URL{
		Scheme: "http",
		Host:   d.Address(),
		Path:   "/",
	}
	if d.Username != nil {
		if d.Password != nil {
			u.User = url.UserPassword(*d.Username, *d.Password)
		} else {
			u.User = url.User(*d.Username)
		}
	}
	return u.String()
}

// String returns a printable form of the descriptor with the password masked
func (d Descriptor) String() string {
	user := "<none>"
	if d.Username != nil {
		user = *d.Username
	}
	password := "<none>"
	if d.Password != nil {
		password = "********"
	}
	return fmt.Sprintf("%s://%s/%s (user=%s, password=%s)", d.Driver, d.Address(), d.Database, user, password)
}
