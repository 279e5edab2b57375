package status

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateStatus_BitValues(t *testing.T) {
	assert.Equal(t, CreateStatus(1), Created)
	assert.Equal(t, CreateStatus(2), UpToDate)
	assert.Equal(t, CreateStatus(4), UpdateNeeded)
	assert.Equal(t, CreateStatus(8), CreatedWithoutViews)
	assert.Equal(t, CreateStatus(16), NotConnected)
	assert.Equal(t, CreateStatus(32), Error)
}

func TestIsSuccessIsFailure(t *testing.T) {
	tests := []struct {
		s       CreateStatus
		success bool
		failure bool
	}{
		{Created, true, false},
		{UpToDate, true, false},
		{CreatedWithoutViews, true, false},
		{UpdateNeeded, false, false},
		{NotConnected, false, true},
		{Error, false, true},
		{CreatedWithoutViews | Error, false, true},
		{0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.s.String(), func(t *testing.T) {
			assert.Equal(t, tt.success, IsSuccess(tt.s))
			assert.Equal(t, tt.failure, IsFailure(tt.s))
		})
	}
}

func TestCreateStatus_String(t *testing.T) {
	assert.Equal(t, "Created", Created.String())
	assert.Equal(t, "CreatedWithoutViews|Error", (CreatedWithoutViews | Error).String())
	assert.Equal(t, "Unknown", CreateStatus(0).String())
	assert.Equal(t, "Unknown", CreateStatus(64).String())
}

func TestCreateStatus_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(map[string]CreateStatus{"s": UpToDate})
	require.NoError(t, err)
	assert.JSONEq(t, `{"s":"UpToDate"}`, string(b))
}

func TestDropAndEntryStatus_String(t *testing.T) {
	assert.Equal(t, "Dropped", Dropped.String())
	assert.Equal(t, "Conflict", DropConflict.String())
	assert.Equal(t, "Error", DropError.String())
	assert.Equal(t, "Unknown", DropStatus(0).String())

	assert.Equal(t, "Created", EntryCreated.String())
	assert.Equal(t, "Conflict", EntryConflict.String())
	assert.Equal(t, "Updated", EntryUpdated.String())
	assert.Equal(t, "Error", EntryError.String())
	assert.Equal(t, "Unknown", EntryStatus(9).String())
}

func TestCreateStatus_UnmarshalText(t *testing.T) {
	var got struct {
		S CreateStatus `json:"s"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"s":"CreatedWithoutViews|Error"}`), &got))
	assert.Equal(t, CreatedWithoutViews|Error, got.S)

	err := json.Unmarshal([]byte(`{"s":"Unknown"}`), &got)
	assert.Error(t, err)
}
