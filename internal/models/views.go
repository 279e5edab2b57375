package models

import "maps"

// View is a named index definition. The map and reduce sources are opaque
// to lazyboy and only ever stored.
type View struct {
	Map    string `json:"map"`
	Reduce string `json:"reduce,omitempty"`
}

// DesignViews is the versioned set of views for one database, stored under
// common.DesignViewsID. Version must grow whenever Views changes.
type DesignViews struct {
	ID      string          `json:"_id,omitempty"`
	Rev     string          `json:"_rev,omitempty"`
	Version int             `json:"version"`
	Type    string          `json:"type"`
	Views   map[string]View `json:"views"`
}

// Clone returns a deep copy without store bookkeeping (id, revision).
func (d DesignViews) Clone() DesignViews {
	c := DesignViews{Version: d.Version, Type: d.Type}
	if d.Views != nil {
		c.Views = maps.Clone(d.Views)
	}
	return c
}
