package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message of the binary driver protocol, used for both
// requests and responses. Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Handshake fields
	Database string `json:"database,omitempty"` // Used for: Hello
	User     string `json:"user,omitempty"`     // Used for: Hello
	Password string `json:"password,omitempty"` // Used for: Hello

	// Query fields
	Query  string `json:"query,omitempty"`  // Used for: Query
	Target uint64 `json:"target,omitempty"` // Used for: Cancel (request id of the query to cancel)
	Data   []byte `json:"data,omitempty"`   // Used for: Query (response)

	// Response only fields
	Ok  bool   `json:"ok,omitempty"`  // Used for: Hello, Cancel responses
	Err string `json:"err,omitempty"` // Empty if no error, otherwise contains the error message
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewHelloRequest creates the handshake request sent right after connecting
func NewHelloRequest(database, user, password string) *Message {
	return &Message{
		MsgType:  MsgTHello,
		Database: database,
		User:     user,
		Password: password,
	}
}

// NewHelloResponse creates a handshake response
func NewHelloResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTHello,
		Ok:      err == nil,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewQueryRequest creates a new Query request
func NewQueryRequest(query string) *Message {
	return &Message{
		MsgType: MsgTQuery,
		Query:   query,
	}
}

// NewQueryResponse creates a new Query response
func NewQueryResponse(data []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTQuery,
		Data:    data,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewCancelRequest creates a request to cancel the query sent with the given request id
func NewCancelRequest(target uint64) *Message {
	return &Message{
		MsgType: MsgTCancel,
		Target:  target,
	}
}

// NewCancelResponse creates a new Cancel response
func NewCancelResponse(ok bool) *Message {
	return &Message{
		MsgType: MsgTCancel,
		Ok:      ok,
	}
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used by the binary driver.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTHello:
		return "hello"
	case MsgTQuery:
		return "query"
	case MsgTCancel:
		return "cancel"
	case MsgTError:
		return "error"
	case MsgTSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	switch s {
	case "hello":
		*t = MsgTHello
	case "query":
		*t = MsgTQuery
	case "cancel":
		*t = MsgTCancel
	case "error":
		*t = MsgTError
	case "success":
		*t = MsgTSuccess
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// Session operations

	MsgTHello  // Handshake (database + credentials)
	MsgTQuery  // Execute a statement
	MsgTCancel // Cancel an outstanding statement
)
