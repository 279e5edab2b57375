// Package common defines shared constants and sentinel errors used across
// the store, provisioning and entry layers. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Store-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrTransport       = errors.New("transport error")

	// Usage errors.
	ErrNotManaged   = errors.New("database doesn't exist or not managed")
	ErrNotConnected = errors.New("no store connection")
	ErrInvalidName  = errors.New("invalid database name")
	ErrInvalidEntry = errors.New("entry requires id and revision")

	// Provisioning errors.
	ErrSomeDatabasesFailed = errors.New("some databases failed to initialize")
)
