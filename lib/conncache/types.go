package conncache

import (
	"github.com/ValentinKolb/chbridge/lib/util"
	"strconv"
)

// --------------------------------------------------------------------------
// Connection Key
// --------------------------------------------------------------------------

// Identity identifies the user mapping a connection is opened for
type Identity uint64

// ServerID identifies a foreign server
type ServerID uint64

// Intent classifies the access mode of a connection
type Intent uint8

const (
	IntentRead Intent = iota
	IntentWrite
)

// String returns the string representation of an Intent
func (i Intent) String() string {
	switch i {
	case IntentRead:
		return "read"
	case IntentWrite:
		return "write"
	default:
		return "unknown"
	}
}

// Key identifies one slot of the cache
type Key struct {
	Identity Identity
	Intent   Intent
}

// String returns a printable form of the key
func (k Key) String() string {
	return strconv.FormatUint(uint64(k.Identity), 10) + "/" + k.Intent.String()
}

// --------------------------------------------------------------------------
// Metadata Fingerprints
// --------------------------------------------------------------------------

// Category names the kind of catalog object a metadata change refers to
type Category uint8

const (
	CategoryServer Category = iota + 1
	CategoryUserMapping
)

// String returns the string representation of a Category
func (c Category) String() string {
	switch c {
	case CategoryServer:
		return "server"
	case CategoryUserMapping:
		return "user-mapping"
	default:
		return "unknown"
	}
}

// Fingerprint identifies a catalog object in metadata change notifications.
// The zero value is reserved, a change with fingerprint 0 refers to all objects of its category.
type Fingerprint uint32

// ServerFingerprint returns the fingerprint of a foreign server
func ServerFingerprint(id ServerID) Fingerprint {
	return fingerprint("server:" + strconv.FormatUint(uint64(id), 10))
}

// MappingFingerprint returns the fingerprint of a user mapping
func MappingFingerprint(id Identity) Fingerprint {
	return fingerprint("mapping:" + strconv.FormatUint(uint64(id), 10))
}

func fingerprint(s string) Fingerprint {
	fp := Fingerprint(util.HashString(s, 0).Fold32())
	if fp == 0 {
		return 1
	}
	return fp
}

// --------------------------------------------------------------------------
// Local Transaction Events
// --------------------------------------------------------------------------

// XactEvent is a boundary event of the local top level transaction
type XactEvent uint8

const (
	XactEventBegin XactEvent = iota
	XactEventPreCommit
	XactEventCommit
	XactEventAbort
	XactEventPrePrepare
)

// String returns the string representation of a XactEvent
func (e XactEvent) String() string {
	switch e {
	case XactEventBegin:
		return "begin"
	case XactEventPreCommit:
		return "pre-commit"
	case XactEventCommit:
		return "commit"
	case XactEventAbort:
		return "abort"
	case XactEventPrePrepare:
		return "pre-prepare"
	default:
		return "unknown"
	}
}

// SubXactEvent is a boundary event of a local subtransaction (savepoint)
type SubXactEvent uint8

const (
	SubXactEventStart SubXactEvent = iota
	SubXactEventPreCommit
	SubXactEventCommit
	SubXactEventAbort
)

// String returns the string representation of a SubXactEvent
func (e SubXactEvent) String() string {
	switch e {
	case SubXactEventStart:
		return "start"
	case SubXactEventPreCommit:
		return "pre-commit"
	case SubXactEventCommit:
		return "commit"
	case SubXactEventAbort:
		return "abort"
	default:
		return "unknown"
	}
}
