package models

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicNames(t *testing.T) {
	wid := NewWorkspaceID()
	pid := NewPageID()

	assert.Equal(t, fmt.Sprintf("workspace:%s", wid), WorkspaceTopic(wid))
	assert.Equal(t, fmt.Sprintf("workspace:%s:page:%s", wid, pid), PageTopic(wid, pid))
}

func TestEventValidate(t *testing.T) {
	wid := NewWorkspaceID()
	uid := NewUserID()

	t.Run("payload matching kind", func(t *testing.T) {
		ev := NewEvent(EventPageCreated, wid, uid, "alice")
		ev.Page = &PagePayload{PageID: NewPageID(), Title: "Notes"}
		require.NoError(t, ev.Validate())
		assert.Equal(t, "alice", ev.Username)
	})

	t.Run("missing payload", func(t *testing.T) {
		ev := NewEvent(EventBlocksReconciled, wid, uid, "alice")
		require.Error(t, ev.Validate())
	})

	t.Run("extra payload rejected", func(t *testing.T) {
		ev := NewEvent(EventCursorMoved, wid, uid, "alice")
		ev.Cursor = &CursorPayload{PageID: NewPageID(), Offset: 3}
		ev.Presence = &PresencePayload{UserName: "alice"}
		require.Error(t, ev.Validate())
	})

	t.Run("unknown kind", func(t *testing.T) {
		ev := NewEvent(EventKind("page_exploded"), wid, uid, "alice")
		ev.Page = &PagePayload{PageID: NewPageID()}
		require.Error(t, ev.Validate())
	})

	t.Run("zero workspace", func(t *testing.T) {
		ev := NewEvent(EventUserJoined, WorkspaceID{}, uid, "alice")
		ev.Presence = &PresencePayload{UserName: "alice"}
		require.Error(t, ev.Validate())
	})
}

func TestEventIDsAreMonotonicULIDs(t *testing.T) {
	wid := NewWorkspaceID()
	uid := NewUserID()

	prev := ""
	for i := 0; i < 10; i++ {
		ev := NewEvent(EventCursorMoved, wid, uid, "alice")
		require.Len(t, ev.ID, 26)
		if prev != "" {
			// ULIDs generated in sequence sort lexicographically by time.
			assert.LessOrEqual(t, prev, ev.ID)
		}
		prev = ev.ID
	}
}
