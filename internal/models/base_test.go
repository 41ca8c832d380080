package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewULID(t *testing.T) {
	id := NewULID()
	assert.False(t, id.IsZero())
	assert.Len(t, id.String(), 26)
	assert.NotEqual(t, id, NewULID())
}

func TestParseULID(t *testing.T) {
	id := NewULID()
	parsed, err := ParseULID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseULID("not-a-ulid")
	assert.Error(t, err)
}

func TestULID_ValueScan(t *testing.T) {
	id := NewULID()
	v, err := id.Value()
	require.NoError(t, err)
	assert.Equal(t, id.String(), v)

	zero, err := ULID{}.Value()
	require.NoError(t, err)
	assert.Nil(t, zero)

	tests := []struct {
		name    string
		input   any
		want    ULID
		wantErr bool
	}{
		{"string", id.String(), id, false},
		{"bytes", []byte(id.String()), id, false},
		{"nil", nil, ULID{}, false},
		{"empty", "", ULID{}, false},
		{"garbage", "zzz", ULID{}, true},
		{"int", 42, ULID{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got ULID
			err := got.Scan(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestULID_JSON(t *testing.T) {
	entry := FavoriteEntry{Store: FavoritesStore, Key: FavoriteChannelsKey, Value: "101"}
	entry.ID = NewULID()

	data, err := json.Marshal(entry)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id":"`+entry.ID.String()+`"`)

	var decoded FavoriteEntry
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, entry.ID, decoded.ID)
	assert.Equal(t, "101", decoded.Value)
}

func TestBaseModel_BeforeCreate(t *testing.T) {
	var m BaseModel
	require.NoError(t, m.BeforeCreate(nil))
	assert.False(t, m.ID.IsZero())

	fixed := NewULID()
	m = BaseModel{ID: fixed}
	require.NoError(t, m.BeforeCreate(nil))
	assert.Equal(t, fixed, m.ID)
}
