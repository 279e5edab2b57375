package store

import (
	"encoding/json"
	"fmt"
)

// EncodeBody converts doc into a detached JSON object without the _id and
// _rev metadata fields.
func EncodeBody(doc any) (map[string]any, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var body map[string]any
	if err := json.Unmarshal(b, &body); err != nil {
		return nil, fmt.Errorf("document must be a JSON object: %w", err)
	}
	delete(body, "_id")
	delete(body, "_rev")
	return body, nil
}

// WithMeta returns a copy of body carrying id and rev.
func WithMeta(body map[string]any, id, rev string) map[string]any {
	out := make(map[string]any, len(body)+2)
	for k, v := range body {
		out[k] = v
	}
	out["_id"] = id
	out["_rev"] = rev
	return out
}

// NewDocument builds the view input for a stored body.
func NewDocument(id, rev string, body map[string]any) (Document, error) {
	raw, err := json.Marshal(WithMeta(body, id, rev))
	if err != nil {
		return Document{}, err
	}
	// map functions get their own copy
	var fresh map[string]any
	if err := json.Unmarshal(raw, &fresh); err != nil {
		return Document{}, err
	}
	return Document{ID: id, Body: fresh, Raw: raw}, nil
}
