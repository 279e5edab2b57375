package couch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/lazyboy/internal/store"
)

// Database is a handle onto one CouchDB database.
type Database struct {
	conn *Connection
	name string
}

func (d *Database) Name() string {
	return d.name
}

func (d *Database) path() string {
	return "/" + url.PathEscape(d.name)
}

// docPath keeps the slash of design document ids unescaped.
func (d *Database) docPath(id string) string {
	if rest, ok := strings.CutPrefix(id, store.DesignPrefix); ok {
		return d.path() + "/_design/" + url.PathEscape(rest)
	}
	return d.path() + "/" + url.PathEscape(id)
}

func (d *Database) Exists(ctx context.Context) (bool, error) {
	_, _, err := d.conn.do(ctx, http.MethodHead, d.path(), nil, nil)
	if err == nil {
		return true, nil
	}
	var se *store.Error
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

func (d *Database) Create(ctx context.Context) error {
	_, _, err := d.conn.do(ctx, http.MethodPut, d.path(), nil, nil)
	return err
}

func (d *Database) Destroy(ctx context.Context) error {
	_, _, err := d.conn.do(ctx, http.MethodDelete, d.path(), nil, nil)
	return err
}

func (d *Database) Get(ctx context.Context, id string, out any) error {
	_, data, err := d.conn.do(ctx, http.MethodGet, d.docPath(id), nil, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", id, err)
	}
	return nil
}

func (d *Database) Save(ctx context.Context, id, rev string, doc any) (store.Result, error) {
	var q url.Values
	if rev != "" {
		q = url.Values{"rev": {rev}}
	}
	_, data, err := d.conn.do(ctx, http.MethodPut, d.docPath(id), q, doc)
	if err != nil {
		return store.Result{}, err
	}
	return decodeResult(data)
}

func (d *Database) Remove(ctx context.Context, id, rev string) (store.Result, error) {
	_, data, err := d.conn.do(ctx, http.MethodDelete, d.docPath(id), url.Values{"rev": {rev}}, nil)
	if err != nil {
		return store.Result{}, err
	}
	return decodeResult(data)
}

// View queries "<design>/<view>" through /_design/<design>/_view/<view>.
func (d *Database) View(ctx context.Context, path string, q store.ViewQuery) (*store.ViewResult, error) {
	design, view, ok := strings.Cut(path, "/")
	if !ok || design == "" || view == "" {
		return nil, fmt.Errorf("malformed view path %q", path)
	}
	params, err := encodeQuery(q)
	if err != nil {
		return nil, err
	}
	p := d.path() + "/_design/" + url.PathEscape(design) + "/_view/" + url.PathEscape(view)
	_, data, err := d.conn.do(ctx, http.MethodGet, p, params, nil)
	if err != nil {
		return nil, err
	}
	var res store.ViewResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode view %s: %w", path, err)
	}
	return &res, nil
}

func decodeResult(data []byte) (store.Result, error) {
	var r store.Result
	if err := json.Unmarshal(data, &r); err != nil {
		return store.Result{}, fmt.Errorf("decode write result: %w", err)
	}
	return r, nil
}

// encodeQuery renders view parameters; keys are JSON-encoded as CouchDB
// expects.
func encodeQuery(q store.ViewQuery) (url.Values, error) {
	v := url.Values{}
	for name, key := range map[string]any{"key": q.Key, "startkey": q.StartKey, "endkey": q.EndKey} {
		if key == nil {
			continue
		}
		b, err := json.Marshal(key)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		v.Set(name, string(b))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Descending {
		v.Set("descending", "true")
	}
	if q.Group {
		v.Set("group", "true")
	}
	if q.Reduce != nil {
		v.Set("reduce", strconv.FormatBool(*q.Reduce))
	}
	if q.IncludeDocs {
		v.Set("include_docs", "true")
	}
	return v, nil
}
