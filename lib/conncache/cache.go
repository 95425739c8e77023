package conncache

import (
	"context"
	"errors"
	"github.com/ValentinKolb/chbridge/lib/connfactory"
	"github.com/ValentinKolb/chbridge/lib/util"
	"github.com/ValentinKolb/chbridge/rpc/common"
	"github.com/ValentinKolb/chbridge/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"sort"
	"sync"
)

var Logger = logger.GetLogger("conncache")

// Cache maps (user mapping, intent) to live remote connections and keeps their
// remote transaction state in line with the local transaction. A Cache is
// created once per worker (session) and passed to everybody needing connections.
type Cache struct {
	catalog    Catalog
	factory    connfactory.IConnFactory
	config     Config
	statements Statements

	entries       *xsync.MapOf[Key, *Entry]
	invalidations *util.LockFreeMPSC[metadataChange]
	metrics       *cacheMetrics
	registerOnce  sync.Once

	// mu serializes all entry mutations, only OnMetadataChange runs without it
	mu                sync.Mutex
	xactGotConnection bool // Acquire was called in the current local transaction
	cursorNumber      uint32
	prepStmtNumber    uint32
}

// NewCache creates an empty cache. The cache registers with the notification
// points of config on the first call to Acquire.
func NewCache(catalog Catalog, factory connfactory.IConnFactory, config Config) *Cache {
	c := &Cache{
		catalog:       catalog,
		factory:       factory,
		config:        config,
		statements:    config.Statements,
		entries:       xsync.NewMapOf[Key, *Entry](),
		invalidations: util.NewLockFreeMPSC[metadataChange](),
	}
	c.metrics = newCacheMetrics(c.invalidations.Len)
	return c
}

// --------------------------------------------------------------------------
// Acquire
// --------------------------------------------------------------------------

// Acquire returns the connection for the given user mapping and intent, opening
// it if necessary. Inside a local transaction the remote transaction is begun
// (or savepoints are created) up to the current local nesting level.
//
// As long as the entry is neither invalidated nor broken, every call returns the
// same gate without any network round trip outside transaction boundaries.
// The returned gate stays owned by the cache, it must not be disconnected by the caller.
func (c *Cache) Acquire(ctx context.Context, identity Identity, intent Intent, willPrepStmt bool) (transport.IGate, error) {
	c.register()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Consumed by the transaction callbacks
	c.xactGotConnection = true

	c.applyInvalidations()

	key := Key{Identity: identity, Intent: intent}
	entry, _ := c.entries.LoadOrCompute(key, func() *Entry {
		return newEntry(key)
	})

	// Reject further use of connections which failed a previous state change
	if err := c.checkSane(entry); err != nil {
		return nil, err
	}

	// Remake invalidated or suspect connections once we are out of all transactions
	if entry.gate != nil && entry.xactDepth == 0 {
		switch {
		case entry.invalidated:
			Logger.Infof("closing connection %s due to invalidation", key)
			c.disconnect(entry, reasonInvalidated)
		case entry.gate.suspect.Load():
			Logger.Infof("closing connection %s after failed cancel", key)
			c.disconnect(entry, reasonSuspect)
		}
	}

	// Idle connections are not probed, a broken connection fails on its next use
	if entry.gate == nil {
		if err := c.connect(ctx, entry); err != nil {
			return nil, err
		}
	} else {
		c.metrics.hits.Inc()
	}

	entry.havePrepStmt = entry.havePrepStmt || willPrepStmt

	if err := c.beginRemoteXact(ctx, entry); err != nil {
		return nil, err
	}

	return entry.gate, nil
}

// connect opens a new connection for the entry. On failure the entry stays without gate.
func (c *Cache) connect(ctx context.Context, entry *Entry) error {
	mapping, err := c.catalog.UserMapping(entry.key.Identity)
	if err != nil {
		return common.WrapError(common.ErrCConfiguration, err, "cannot resolve user mapping %d", entry.key.Identity)
	}
	server, err := c.catalog.ForeignServer(mapping.ServerID)
	if err != nil {
		return common.WrapError(common.ErrCConfiguration, err, "cannot resolve foreign server %d", mapping.ServerID)
	}

	// Reset all transient state fields, to be sure all are clean
	entry.resetTransient()
	entry.serverFingerprint = ServerFingerprint(server.ID)
	entry.mappingFingerprint = MappingFingerprint(mapping.ID)

	desc, err := connfactory.Resolve(server.Options, mapping.Options)
	if err != nil {
		return withServer(err, server.Name)
	}

	gate, err := c.factory.Open(ctx, desc)
	if err != nil {
		c.metrics.connectErrors.Inc()
		return withServer(err, server.Name)
	}

	entry.gate = newTrackedGate(gate)
	c.metrics.connects.Inc()
	Logger.Debugf("new connection %s for server %q (%s)", entry.key, server.Name, desc)
	return nil
}

// disconnect closes the gate of the entry, errors are only logged
func (c *Cache) disconnect(entry *Entry, reason string) {
	if entry.gate == nil {
		return
	}
	if err := entry.gate.close(); err != nil {
		Logger.Warningf("error while disconnecting %s: %v", entry.key, err)
	}
	entry.gate = nil
	c.metrics.disconnects[reason].Inc()
}

// nestLevel returns the nesting level of the local transaction, 0 without transaction notifier
func (c *Cache) nestLevel() int {
	if c.config.TransactionNotifier == nil {
		return 0
	}
	return c.config.TransactionNotifier.NestLevel()
}

// register installs the callbacks at the configured notification points, only once per cache
func (c *Cache) register() {
	c.registerOnce.Do(func() {
		if n := c.config.TransactionNotifier; n != nil {
			n.RegisterXactCallback(c.OnXactEvent)
			n.RegisterSubXactCallback(c.OnSubXactEvent)
		}
		if n := c.config.MetadataNotifier; n != nil {
			n.RegisterMetadataCallback(c.OnMetadataChange)
		}
	})
}

// --------------------------------------------------------------------------
// Numbering
// --------------------------------------------------------------------------

// NextCursorNumber returns a number for a new remote cursor, unique within the
// current local transaction
func (c *Cache) NextCursorNumber() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursorNumber++
	return c.cursorNumber
}

// NextPrepStmtNumber returns a number for a new prepared statement, unique for the
// lifetime of the cache
func (c *Cache) NextPrepStmtNumber() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prepStmtNumber++
	return c.prepStmtNumber
}

// --------------------------------------------------------------------------
// Inspection and Shutdown
// --------------------------------------------------------------------------

// Snapshot returns the state of the entry for key
func (c *Cache) Snapshot(key Key) (EntryState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.applyInvalidations()

	entry, ok := c.entries.Load(key)
	if !ok {
		return EntryState{}, false
	}
	return entry.state(), true
}

// Entries returns the state of all entries ordered by key
func (c *Cache) Entries() []EntryState {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.applyInvalidations()

	states := make([]EntryState, 0, c.entries.Size())
	c.entries.Range(func(_ Key, entry *Entry) bool {
		states = append(states, entry.state())
		return true
	})
	sort.Slice(states, func(i, j int) bool {
		if states[i].Key.Identity != states[j].Key.Identity {
			return states[i].Key.Identity < states[j].Key.Identity
		}
		return states[i].Key.Intent < states[j].Key.Intent
	})
	return states
}

// Close disconnects all connections regardless of their transaction state. The
// cache stays usable, later calls to Acquire open new connections.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Range(func(_ Key, entry *Entry) bool {
		c.disconnect(entry, reasonClose)
		entry.resetTransient()
		return true
	})
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// withServer attaches the server name to a common.Error
func withServer(err error, server string) error {
	var e *common.Error
	if errors.As(err, &e) && e.Server == "" {
		e.Server = server
	}
	return err
}
