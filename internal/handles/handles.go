// Package handles keeps the per-database handles opened against the store
// connection. Handles are established on first use; concurrent callers
// resolving the same name share a single handle.
package handles

import (
	"fmt"
	"slices"
	"sync"

	"github.com/dmitrijs2005/lazyboy/internal/common"
	"github.com/dmitrijs2005/lazyboy/internal/naming"
	"github.com/dmitrijs2005/lazyboy/internal/store"
	"github.com/puzpuzpuz/xsync/v3"
)

// Cache maps formatted database names to open handles.
type Cache struct {
	prefix  string
	mu      sync.RWMutex
	conn    store.Connection
	handles *xsync.MapOf[string, store.Database]
}

// New returns an empty, unconnected cache for names under prefix.
func New(prefix string) *Cache {
	return &Cache{
		prefix:  prefix,
		handles: xsync.NewMapOf[string, store.Database](),
	}
}

// Connect installs conn as the underlying connection. A previous connection
// is closed and its handles are dropped; conn is installed even when that
// close fails, and the close error is returned.
func (c *Cache) Connect(conn store.Connection) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.conn != nil && c.conn != conn {
		if cerr := c.conn.Close(); cerr != nil {
			err = fmt.Errorf("close previous connection: %w", cerr)
		}
	}
	c.conn = conn
	c.handles.Clear()
	return err
}

// Connected reports whether a store connection is installed.
func (c *Cache) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Format returns the fully-qualified name for a logical name.
func (c *Cache) Format(name string) (string, error) {
	return naming.Format(c.prefix, name)
}

// Resolve returns the handle for name, establishing it if needed.
func (c *Cache) Resolve(name string) (store.Database, error) {
	full, err := c.Format(name)
	if err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil {
		return nil, common.ErrNotConnected
	}
	db, _ := c.handles.LoadOrCompute(full, func() store.Database {
		return c.conn.Database(full)
	})
	return db, nil
}

// Lookup returns an already open handle without establishing one.
func (c *Cache) Lookup(name string) (store.Database, bool) {
	full, err := c.Format(name)
	if err != nil {
		return nil, false
	}
	return c.handles.Load(full)
}

// Forget drops the handle for name.
func (c *Cache) Forget(name string) {
	if full, err := c.Format(name); err == nil {
		c.handles.Delete(full)
	}
}

// Names lists the formatted names of all open handles in sorted order.
func (c *Cache) Names() []string {
	var names []string
	c.handles.Range(func(name string, _ store.Database) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)
	return names
}

// Close drops every handle and closes the underlying connection.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handles.Clear()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
