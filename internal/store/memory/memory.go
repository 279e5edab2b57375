// Package memory implements the store contract in process memory. It keeps
// the same revision and tombstone semantics as the remote stores, which makes
// it suitable for tests and for running lazyboy without a server.
package memory

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"

	"github.com/dmitrijs2005/lazyboy/internal/store"
)

type document struct {
	rev     string
	deleted bool
	body    map[string]any
}

type database struct {
	docs map[string]*document
}

// Connection is an in-memory store shared by all handles it vends.
type Connection struct {
	mu    sync.RWMutex
	dbs   map[string]*database
	views store.ViewFuncs
}

// NewConnection creates an empty store. views are used to answer view
// queries.
func NewConnection(views store.ViewFuncs) *Connection {
	return &Connection{dbs: make(map[string]*database), views: views}
}

func (c *Connection) Database(name string) store.Database {
	return &Database{conn: c, name: name}
}

func (c *Connection) Close() error {
	return nil
}

// Database is a handle onto one in-memory database.
type Database struct {
	conn *Connection
	name string
}

func (d *Database) Name() string {
	return d.name
}

func (d *Database) Exists(ctx context.Context) (bool, error) {
	d.conn.mu.RLock()
	defer d.conn.mu.RUnlock()
	_, ok := d.conn.dbs[d.name]
	return ok, nil
}

func (d *Database) Create(ctx context.Context) error {
	d.conn.mu.Lock()
	defer d.conn.mu.Unlock()
	if _, ok := d.conn.dbs[d.name]; ok {
		return &store.Error{StatusCode: http.StatusPreconditionFailed, Code: "file_exists", Reason: "The database could not be created, the file already exists."}
	}
	d.conn.dbs[d.name] = &database{docs: make(map[string]*document)}
	return nil
}

func (d *Database) Destroy(ctx context.Context) error {
	d.conn.mu.Lock()
	defer d.conn.mu.Unlock()
	if _, ok := d.conn.dbs[d.name]; !ok {
		return store.NotFound(store.ReasonMissing)
	}
	delete(d.conn.dbs, d.name)
	return nil
}

// db must be called with the connection lock held.
func (d *Database) db() (*database, error) {
	db, ok := d.conn.dbs[d.name]
	if !ok {
		return nil, store.NotFound("Database does not exist.")
	}
	return db, nil
}

func (d *Database) Get(ctx context.Context, id string, out any) error {
	d.conn.mu.RLock()
	defer d.conn.mu.RUnlock()

	db, err := d.db()
	if err != nil {
		return err
	}
	doc, ok := db.docs[id]
	if !ok {
		return store.NotFound(store.ReasonMissing)
	}
	if doc.deleted {
		return store.NotFound(store.ReasonDeleted)
	}
	b, err := json.Marshal(store.WithMeta(doc.body, id, doc.rev))
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func (d *Database) Save(ctx context.Context, id, rev string, doc any) (store.Result, error) {
	body, err := store.EncodeBody(doc)
	if err != nil {
		return store.Result{}, err
	}

	d.conn.mu.Lock()
	defer d.conn.mu.Unlock()

	db, err := d.db()
	if err != nil {
		return store.Result{}, err
	}

	var prev string
	current, ok := db.docs[id]
	if ok {
		prev, err = store.CheckRev(true, current.deleted, current.rev, rev)
	} else {
		prev, err = store.CheckRev(false, false, "", rev)
	}
	if err != nil {
		return store.Result{}, err
	}

	next, err := store.NextRev(prev)
	if err != nil {
		return store.Result{}, err
	}
	db.docs[id] = &document{rev: next, body: body}
	return store.Result{OK: true, ID: id, Rev: next}, nil
}

func (d *Database) Remove(ctx context.Context, id, rev string) (store.Result, error) {
	d.conn.mu.Lock()
	defer d.conn.mu.Unlock()

	db, err := d.db()
	if err != nil {
		return store.Result{}, err
	}
	current, ok := db.docs[id]
	if !ok {
		return store.Result{}, store.NotFound(store.ReasonMissing)
	}
	if current.deleted {
		return store.Result{}, store.NotFound(store.ReasonDeleted)
	}
	if rev != current.rev {
		return store.Result{}, store.Conflict()
	}
	next, err := store.NextRev(current.rev)
	if err != nil {
		return store.Result{}, err
	}
	db.docs[id] = &document{rev: next, deleted: true}
	return store.Result{OK: true, ID: id, Rev: next}, nil
}

func (d *Database) View(ctx context.Context, path string, q store.ViewQuery) (*store.ViewResult, error) {
	fn, ok := d.conn.views[path]
	if !ok {
		return nil, store.NotFound("missing_named_view")
	}

	d.conn.mu.RLock()
	db, err := d.db()
	if err != nil {
		d.conn.mu.RUnlock()
		return nil, err
	}
	ids := make([]string, 0, len(db.docs))
	for id, doc := range db.docs {
		if !doc.deleted && !store.IsDesignID(id) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	docs := make([]store.Document, 0, len(ids))
	for _, id := range ids {
		doc := db.docs[id]
		sd, err := store.NewDocument(id, doc.rev, doc.body)
		if err != nil {
			d.conn.mu.RUnlock()
			return nil, err
		}
		docs = append(docs, sd)
	}
	d.conn.mu.RUnlock()

	return store.EvaluateView(docs, fn, q)
}
