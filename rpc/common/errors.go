package common

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Error Codes
// --------------------------------------------------------------------------

type ErrCode uint8

const (
	ErrCUnknown        ErrCode = iota // 0: Unclassified failure.
	ErrCConfiguration                 // 1: Invalid connection configuration (e.g. unknown driver kind).
	ErrCConnectFailure                // 2: Opening a connection failed, a later attempt may succeed.
	ErrCConnectionLost                // 3: Remote transaction state is unknown, the local transaction must abort.
	ErrCRemote                        // 4: The remote server rejected a statement.
	ErrCUnsupported                   // 5: The requested operation is not supported for remote connections.
)

// String returns the string representation of an ErrCode
func (c ErrCode) String() string {
	switch c {
	case ErrCConfiguration:
		return "ConfigurationError"
	case ErrCConnectFailure:
		return "ConnectFailure"
	case ErrCConnectionLost:
		return "ConnectionLost"
	case ErrCRemote:
		return "RemoteError"
	case ErrCUnsupported:
		return "Unsupported"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is the error type returned by the connection factory and the connection cache.
// Server names the affected remote server if known.
type Error struct {
	Code   ErrCode
	Server string
	Msg    string
	Cause  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Msg
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// Fatal reports whether the error must abort the enclosing local transaction
func (e *Error) Fatal() bool {
	return e.Code == ErrCConfiguration || e.Code == ErrCConnectionLost
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapError creates a new Error with the given code and message wrapping cause.
func WrapError(code ErrCode, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Code:  code,
		Msg:   fmt.Sprintf(format, args...),
		Cause: cause,
	}
}

// NewConnectionLostError creates the error raised when a connection with unknown
// remote transaction state had to be dropped
func NewConnectionLostError(server string) *Error {
	return &Error{
		Code:   ErrCConnectionLost,
		Server: server,
		Msg:    fmt.Sprintf("connection to server %q was lost", server),
	}
}

// HasCode reports whether err (or any error it wraps) is an *Error with the given code
func HasCode(err error, code ErrCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsFatal reports whether err (or any error it wraps) must abort the local transaction
func IsFatal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Fatal()
	}
	return false
}
