package conncache

// metadataChange is a queued metadata change notification
type metadataChange struct {
	category    Category
	fingerprint Fingerprint
}

// OnMetadataChange marks all connections depending on the changed catalog object
// for recreation. A fingerprint of 0 affects every connection.
//
// It may be called from any goroutine. The notification is queued and applied at
// the start of the next Acquire, transaction event or snapshot. Connections are
// never closed here, they might be in the middle of a transaction. They are remade
// by Acquire at the next opportunity.
func (c *Cache) OnMetadataChange(category Category, fingerprint Fingerprint) {
	c.invalidations.Push(&metadataChange{category: category, fingerprint: fingerprint})
}

// applyInvalidations drains the queued metadata changes, c.mu must be held
func (c *Cache) applyInvalidations() {
	c.invalidations.Drain(func(change *metadataChange) {
		c.entries.Range(func(_ Key, entry *Entry) bool {
			// Ignore empty entries
			if entry.gate == nil {
				return true
			}

			// fingerprint 0 means a reset, must clear all state
			if change.fingerprint == 0 || entry.fingerprint(change.category) == change.fingerprint {
				if !entry.invalidated {
					Logger.Debugf("connection %s invalidated by %s change", entry.key, change.category)
					c.metrics.invalidations.Inc()
				}
				entry.invalidated = true
			}
			return true
		})
	})
}
