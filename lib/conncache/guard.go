package conncache

import (
	"github.com/ValentinKolb/chbridge/rpc/common"
)

// checkSane fails if the entry is marked as being in the middle of a remote
// transaction state change. It is called where no such change may be in
// progress, finding one means a previous begin, commit or abort was interrupted
// and the remote transaction state is unknown.
//
// Such a connection can not be used any more. Reconnecting is not an option
// either, it would silently roll back writes the caller considers done. The
// connection is closed and a fatal error is returned, the local transaction must
// abort. c.mu must be held.
func (c *Cache) checkSane(entry *Entry) error {
	// nothing to do for inactive entries and entries of sane state
	if entry.gate == nil || !entry.changingXactState {
		return nil
	}

	// make sure this entry is inactive
	c.disconnect(entry, reasonLost)
	c.metrics.fatalErrors.Inc()

	// find server name to be shown in the message
	mapping, err := c.catalog.UserMapping(entry.key.Identity)
	if err != nil {
		return common.WrapError(common.ErrCConnectionLost, err, "connection of user mapping %d was lost", entry.key.Identity)
	}
	server, err := c.catalog.ForeignServer(mapping.ServerID)
	if err != nil {
		return common.WrapError(common.ErrCConnectionLost, err, "connection of user mapping %d was lost", entry.key.Identity)
	}

	Logger.Errorf("connection %s to server %q left in the middle of a transaction state change", entry.key, server.Name)
	return common.NewConnectionLostError(server.Name)
}
