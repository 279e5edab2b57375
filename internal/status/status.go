// Package status defines the outcome codes shared by provisioning, drop and
// entry operations.
//
// CreateStatus values are bit flags, so a composite outcome can be classified
// with IsSuccess / IsFailure without enumerating every member at call sites.
// DropStatus and EntryStatus are small disjoint enumerations.
package status

import (
	"fmt"
	"strings"
)

// CreateStatus is the outcome of initializing one database.
type CreateStatus uint8

const (
	Created CreateStatus = 1 << iota
	UpToDate
	UpdateNeeded
	CreatedWithoutViews
	NotConnected
	Error
)

const (
	successMask = Created | CreatedWithoutViews | UpToDate
	failureMask = Error | NotConnected
)

// IsSuccess reports whether s counts as a successful initialization. A status
// carrying any failure bit is never a success.
func IsSuccess(s CreateStatus) bool {
	return s&successMask != 0 && !IsFailure(s)
}

// IsFailure reports whether s carries a failure bit.
func IsFailure(s CreateStatus) bool {
	return s&failureMask != 0
}

var createNames = []struct {
	s    CreateStatus
	name string
}{
	{Created, "Created"},
	{UpToDate, "UpToDate"},
	{UpdateNeeded, "UpdateNeeded"},
	{CreatedWithoutViews, "CreatedWithoutViews"},
	{NotConnected, "NotConnected"},
	{Error, "Error"},
}

func (s CreateStatus) String() string {
	if s == 0 {
		return "Unknown"
	}
	var parts []string
	for _, n := range createNames {
		if s&n.s != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "Unknown"
	}
	return strings.Join(parts, "|")
}

// MarshalText renders the status by name in JSON reports.
func (s CreateStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses the form produced by MarshalText, e.g.
// "Created|UpToDate".
func (s *CreateStatus) UnmarshalText(b []byte) error {
	var out CreateStatus
	for _, part := range strings.Split(string(b), "|") {
		found := false
		for _, n := range createNames {
			if n.name == part {
				out |= n.s
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown create status %q", part)
		}
	}
	*s = out
	return nil
}

// DropStatus is the outcome of destroying a database.
type DropStatus int

const (
	Dropped DropStatus = iota + 1
	DropConflict
	DropError
)

func (s DropStatus) String() string {
	switch s {
	case Dropped:
		return "Dropped"
	case DropConflict:
		return "Conflict"
	case DropError:
		return "Error"
	default:
		return "Unknown"
	}
}

// EntryStatus is the outcome of writing an entry.
type EntryStatus int

const (
	EntryCreated EntryStatus = iota + 1
	EntryConflict
	EntryUpdated
	EntryError
)

func (s EntryStatus) String() string {
	switch s {
	case EntryCreated:
		return "Created"
	case EntryConflict:
		return "Conflict"
	case EntryUpdated:
		return "Updated"
	case EntryError:
		return "Error"
	default:
		return "Unknown"
	}
}
