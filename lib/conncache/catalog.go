package conncache

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/chbridge/rpc/common"
	"sync"
)

// --------------------------------------------------------------------------
// Catalog Objects
// --------------------------------------------------------------------------

// ForeignServer describes a remote server and its connection options
type ForeignServer struct {
	ID      ServerID
	Name    string
	Options []common.Option
}

// UserMapping binds a local user to a foreign server with user specific options (credentials)
type UserMapping struct {
	ID       Identity
	ServerID ServerID
	Options  []common.Option
}

// Catalog resolves the metadata needed to open connections
type Catalog interface {
	// UserMapping returns the user mapping with the given id
	UserMapping(id Identity) (UserMapping, error)
	// ForeignServer returns the foreign server with the given id
	ForeignServer(id ServerID) (ForeignServer, error)
}

// --------------------------------------------------------------------------
// Notification Points
// --------------------------------------------------------------------------

// MetadataCallback is called after a catalog object changed
type MetadataCallback func(category Category, fingerprint Fingerprint)

// MetadataNotifier delivers catalog change notifications
type MetadataNotifier interface {
	RegisterMetadataCallback(cb MetadataCallback)
}

// XactCallback is called at boundaries of the local top level transaction
type XactCallback func(ctx context.Context, event XactEvent) error

// SubXactCallback is called at boundaries of local subtransactions
type SubXactCallback func(ctx context.Context, event SubXactEvent) error

// TransactionNotifier delivers local transaction boundary events. Callbacks are
// called while the transaction (or subtransaction) the event refers to is still
// the current one.
type TransactionNotifier interface {
	RegisterXactCallback(cb XactCallback)
	RegisterSubXactCallback(cb SubXactCallback)
	// NestLevel returns the nesting level of the current local transaction, 0 if there is none
	NestLevel() int
}

// --------------------------------------------------------------------------
// In-Memory Catalog
// --------------------------------------------------------------------------

// MapCatalog is an in-memory Catalog. Every Put and Drop notifies the registered
// metadata callbacks with the fingerprint of the changed object.
type MapCatalog struct {
	mu        sync.RWMutex
	servers   map[ServerID]ForeignServer
	mappings  map[Identity]UserMapping
	callbacks []MetadataCallback
}

// NewMapCatalog creates an empty catalog
func NewMapCatalog() *MapCatalog {
	return &MapCatalog{
		servers:  make(map[ServerID]ForeignServer),
		mappings: make(map[Identity]UserMapping),
	}
}

// PutServer creates or replaces a foreign server
func (c *MapCatalog) PutServer(server ForeignServer) {
	c.mu.Lock()
	c.servers[server.ID] = server
	c.mu.Unlock()

	c.notify(CategoryServer, ServerFingerprint(server.ID))
}

// PutUserMapping creates or replaces a user mapping
func (c *MapCatalog) PutUserMapping(mapping UserMapping) {
	c.mu.Lock()
	c.mappings[mapping.ID] = mapping
	c.mu.Unlock()

	c.notify(CategoryUserMapping, MappingFingerprint(mapping.ID))
}

// DropUserMapping removes a user mapping
func (c *MapCatalog) DropUserMapping(id Identity) {
	c.mu.Lock()
	delete(c.mappings, id)
	c.mu.Unlock()

	c.notify(CategoryUserMapping, MappingFingerprint(id))
}

// Reset notifies a change of all servers and user mappings without changing anything
func (c *MapCatalog) Reset() {
	c.notify(CategoryServer, 0)
	c.notify(CategoryUserMapping, 0)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see conncache.Catalog and conncache.MetadataNotifier)
// --------------------------------------------------------------------------

func (c *MapCatalog) UserMapping(id Identity) (UserMapping, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	mapping, ok := c.mappings[id]
	if !ok {
		return UserMapping{}, fmt.Errorf("cache lookup failed for user mapping %d", id)
	}
	return mapping, nil
}

func (c *MapCatalog) ForeignServer(id ServerID) (ForeignServer, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	server, ok := c.servers[id]
	if !ok {
		return ForeignServer{}, fmt.Errorf("cache lookup failed for foreign server %d", id)
	}
	return server, nil
}

func (c *MapCatalog) RegisterMetadataCallback(cb MetadataCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = append(c.callbacks, cb)
}

// notify calls all callbacks, the catalog lock is not held while doing so
func (c *MapCatalog) notify(category Category, fp Fingerprint) {
	c.mu.RLock()
	callbacks := make([]MetadataCallback, len(c.callbacks))
	copy(callbacks, c.callbacks)
	c.mu.RUnlock()

	for _, cb := range callbacks {
		cb(category, fp)
	}
}
