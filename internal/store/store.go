// Package store defines the document-store contract lazyboy is built on.
//
// # Overview
//
// A Connection vends Database handles by fully-qualified name. A Database
// performs existence checks, creation and destruction of itself, document
// get/save/remove with revision tokens, and view queries. Implementations:
//
//   - store/couch: CouchDB over HTTP
//   - store/postgres: PostgreSQL, documents kept as JSONB rows
//   - store/memory: in-process maps, used by tests and the memory backend
//
// # Errors
//
// Remote failures are reported as *Error carrying the store's error code and
// reason. *Error unwraps to common.ErrorNotFound (404),
// common.ErrVersionConflict (409) or common.ErrTransport (anything else), so
// callers match with errors.Is. Not-found errors carry one of two reasons,
// ReasonMissing or ReasonDeleted.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/lazyboy/internal/common"
)

// Connection is a live link to a document store.
type Connection interface {
	// Database returns a handle for the fully-qualified database name. It does
	// not touch the remote store.
	Database(name string) Database
	Close() error
}

// Database is a handle for one named database.
type Database interface {
	Name() string
	Exists(ctx context.Context) (bool, error)
	Create(ctx context.Context) error
	Destroy(ctx context.Context) error

	// Get decodes the document into out.
	Get(ctx context.Context, id string, out any) error

	// Save writes doc under id. rev must be the current revision when the
	// document exists and empty when it does not (or was removed).
	Save(ctx context.Context, id, rev string, doc any) (Result, error)

	// Remove deletes the document; later reads report ReasonDeleted.
	Remove(ctx context.Context, id, rev string) (Result, error)

	// View runs the view at path ("<design>/<view>") with query q.
	View(ctx context.Context, path string, q ViewQuery) (*ViewResult, error)
}

// Result is the store's acknowledgement of a write.
type Result struct {
	OK  bool   `json:"ok"`
	ID  string `json:"id"`
	Rev string `json:"rev"`
}

const (
	ReasonMissing = "missing"
	ReasonDeleted = "deleted"
)

// Error is a failure reported by the store.
type Error struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error"`
	Reason     string `json:"reason"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("store error %d: %s (%s)", e.StatusCode, e.Code, e.Reason)
}

func (e *Error) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return common.ErrorNotFound
	case http.StatusConflict:
		return common.ErrVersionConflict
	default:
		return common.ErrTransport
	}
}

// NotFound builds a 404 error with the given reason.
func NotFound(reason string) *Error {
	return &Error{StatusCode: http.StatusNotFound, Code: "not_found", Reason: reason}
}

// Conflict builds a 409 document update conflict.
func Conflict() *Error {
	return &Error{StatusCode: http.StatusConflict, Code: "conflict", Reason: "Document update conflict."}
}

// NotFoundReason returns the reason of a not-found error. ok is false for
// any other error.
func NotFoundReason(err error) (reason string, ok bool) {
	var se *Error
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return se.Reason, true
	}
	return "", false
}

// ViewQuery holds view query parameters. Nil keys are not sent.
type ViewQuery struct {
	Key         any
	StartKey    any
	EndKey      any
	Limit       int
	Descending  bool
	Group       bool
	Reduce      *bool
	IncludeDocs bool
}

// ViewResult is the raw result of a view query.
type ViewResult struct {
	TotalRows int       `json:"total_rows"`
	Offset    int       `json:"offset"`
	Rows      []ViewRow `json:"rows"`
}

type ViewRow struct {
	ID    string          `json:"id,omitempty"`
	Key   any             `json:"key"`
	Value any             `json:"value"`
	Doc   json.RawMessage `json:"doc,omitempty"`
}
