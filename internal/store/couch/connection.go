// Package couch implements the store contract against a CouchDB server over
// HTTP.
//
// The connection uses a pooled client from go-cleanhttp with a per-request
// timeout; nothing is retried at this layer. Non-2xx replies are decoded
// into *store.Error so callers can tell "missing" from "deleted".
package couch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/lazyboy/internal/common"
	"github.com/dmitrijs2005/lazyboy/internal/logging"
	"github.com/dmitrijs2005/lazyboy/internal/store"
	"github.com/hashicorp/go-cleanhttp"
)

// Connection talks to one CouchDB server.
type Connection struct {
	base     *url.URL
	client   *http.Client
	username string
	password string
	logger   logging.Logger
}

type Option func(*Connection)

// WithCredentials enables basic authentication.
func WithCredentials(username, password string) Option {
	return func(c *Connection) {
		c.username = username
		c.password = password
	}
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Connection) {
		c.client.Timeout = d
	}
}

// WithHTTPClient replaces the pooled client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Connection) {
		c.client = hc
	}
}

func WithLogger(l logging.Logger) Option {
	return func(c *Connection) {
		c.logger = l.With("module", "couch")
	}
}

// NewConnection builds a connection to host:port. host may carry a scheme;
// plain hosts use http.
func NewConnection(host string, port int, opts ...Option) (*Connection, error) {
	raw := host
	if !strings.Contains(host, "://") {
		raw = "http://" + host
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse host %q: %w", host, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("empty host in %q", host)
	}
	if port > 0 && u.Port() == "" {
		u.Host = u.Hostname() + ":" + strconv.Itoa(port)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	c := &Connection{
		base:   u,
		client: cleanhttp.DefaultPooledClient(),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// URL returns the server base URL.
func (c *Connection) URL() string {
	return c.base.String()
}

func (c *Connection) Database(name string) store.Database {
	return &Database{conn: c, name: name}
}

func (c *Connection) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// do performs one request. body is JSON-encoded when non-nil. The reply body
// is returned for 2xx statuses; anything else becomes a *store.Error.
func (c *Connection) do(ctx context.Context, method, path string, query url.Values, body any) (int, []byte, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	target := c.base.String() + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s %s: %v", common.ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: read body: %v", common.ErrTransport, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.StatusCode, data, nil
	}

	se := &store.Error{StatusCode: resp.StatusCode}
	if len(data) > 0 {
		_ = json.Unmarshal(data, se)
	}
	if se.Code == "" {
		se.Code = strings.ToLower(strings.ReplaceAll(http.StatusText(resp.StatusCode), " ", "_"))
	}
	c.logger.Debug(ctx, "couch request failed", "method", method, "path", path, "status", resp.StatusCode, "reason", se.Reason)
	return resp.StatusCode, nil, se
}
