// Package models defines the documents lazyboy persists and the reports it
// hands back to callers.
package models

import (
	"encoding/json"
	"time"
)

// Entry is a versioned envelope wrapping a caller payload.
type Entry struct {
	// ID is assigned on first write and never changes afterwards.
	ID string `json:"_id,omitempty"`

	// Rev is the store's revision token; every write must present the
	// current one.
	Rev string `json:"_rev,omitempty"`

	// Created and Modified are wall-clock timestamps in milliseconds.
	Created  int64 `json:"created"`
	Modified int64 `json:"modified"`

	// IsDeleted marks a soft-deleted entry. It stays readable until it is
	// removed for good.
	IsDeleted bool `json:"isDeleted"`

	// Type is an optional caller classification, also used as id prefix.
	Type string `json:"type"`

	// Instance is the caller payload, kept as raw JSON.
	Instance json.RawMessage `json:"instance"`
}

// NewEntry wraps instance into a fresh envelope stamped with the current time.
func NewEntry(instance any, entryType string) (*Entry, error) {
	b, err := json.Marshal(instance)
	if err != nil {
		return nil, err
	}
	now := NowMillis(time.Now())
	return &Entry{
		Created:  now,
		Modified: now,
		Type:     entryType,
		Instance: b,
	}, nil
}

// Decode unmarshals the payload into v.
func (e *Entry) Decode(v any) error {
	return json.Unmarshal(e.Instance, v)
}

// NowMillis converts t to Unix milliseconds.
func NowMillis(t time.Time) int64 {
	return t.UnixMilli()
}
