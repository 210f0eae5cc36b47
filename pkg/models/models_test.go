package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedIDParse(t *testing.T) {
	id := NewPageID()

	parsed, err := ParsePageID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParsePageID("not-a-uuid")
	require.Error(t, err)

	assert.True(t, PageID{}.IsZero())
	assert.False(t, id.IsZero())
}

func TestTypedIDJSONIsPlainString(t *testing.T) {
	id := NewBlockID()

	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"`+id.String()+`"`, string(data))

	var back BlockID
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, id, back)
}

func TestJSONMapScanValue(t *testing.T) {
	m := JSONMap{"text": "hello", "checked": true}

	v, err := m.Value()
	require.NoError(t, err)

	var back JSONMap
	require.NoError(t, back.Scan(v))
	assert.Equal(t, "hello", back["text"])
	assert.Equal(t, true, back["checked"])

	var fromNil JSONMap
	require.NoError(t, fromNil.Scan(nil))
	assert.NotNil(t, fromNil)
	assert.Empty(t, fromNil)
}

func TestJSONMapClone(t *testing.T) {
	m := JSONMap{"text": "hello"}
	c := m.Clone()
	c["text"] = "changed"
	assert.Equal(t, "hello", m["text"])
	assert.Nil(t, JSONMap(nil).Clone())
}

func TestMemberRoleCanWrite(t *testing.T) {
	assert.True(t, RoleOwner.CanWrite())
	assert.True(t, RoleEditor.CanWrite())
	assert.False(t, RoleViewer.CanWrite())
}
