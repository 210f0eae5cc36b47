package realtime

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notehub-io/notehub/pkg/models"
)

func testHub() *Hub {
	return NewHub(zerolog.Nop())
}

func cursorEvent(wid models.WorkspaceID, uid models.UserID, offset int) models.Event {
	ev := models.NewEvent(models.EventCursorMoved, wid, uid, "alice")
	ev.Cursor = &models.CursorPayload{PageID: models.NewPageID(), Offset: offset}
	return ev
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	h := testHub()
	defer h.Close()

	wid := models.NewWorkspaceID()
	topic := models.WorkspaceTopic(wid)
	s1 := h.Subscribe(topic)
	s2 := h.Subscribe(topic)

	ev := cursorEvent(wid, models.NewUserID(), 1)
	require.NoError(t, h.Publish(topic, ev))

	for _, s := range []*Subscription{s1, s2} {
		select {
		case got := <-s.C:
			assert.Equal(t, ev.ID, got.ID)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestTopicsAreIsolated(t *testing.T) {
	h := testHub()
	defer h.Close()

	wid := models.NewWorkspaceID()
	pageTopic := models.PageTopic(wid, models.NewPageID())
	otherTopic := models.PageTopic(wid, models.NewPageID())

	sub := h.Subscribe(otherTopic)
	require.NoError(t, h.Publish(pageTopic, cursorEvent(wid, models.NewUserID(), 1)))

	select {
	case ev := <-sub.C:
		t.Fatalf("subscriber of %s received event %s published to %s", otherTopic, ev.ID, pageTopic)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDeliveryOrderPerTopic(t *testing.T) {
	h := testHub()
	defer h.Close()

	wid := models.NewWorkspaceID()
	uid := models.NewUserID()
	topic := models.WorkspaceTopic(wid)
	sub := h.Subscribe(topic)

	var published []string
	for i := 0; i < 20; i++ {
		ev := cursorEvent(wid, uid, i)
		published = append(published, ev.ID)
		require.NoError(t, h.Publish(topic, ev))
	}

	for i := 0; i < 20; i++ {
		select {
		case got := <-sub.C:
			assert.Equal(t, published[i], got.ID, "events must arrive in publish order")
		case <-time.After(time.Second):
			t.Fatal("missing event")
		}
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	h := testHub()
	defer h.Close()

	wid := models.NewWorkspaceID()
	uid := models.NewUserID()
	topic := models.WorkspaceTopic(wid)
	slow := h.Subscribe(topic)
	fast := h.Subscribe(topic)

	// Nobody drains slow; publishing far past its buffer must not block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriptionBuffer*2; i++ {
			_ = h.Publish(topic, cursorEvent(wid, uid, i))
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// The fast subscriber drains everything its buffer held.
	drained := 0
	for {
		select {
		case <-fast.C:
			drained++
			continue
		default:
		}
		break
	}
	assert.Equal(t, subscriptionBuffer, drained)
	assert.Len(t, slow.C, subscriptionBuffer)
}

func TestPublishRejectsMalformedEvents(t *testing.T) {
	h := testHub()
	defer h.Close()

	wid := models.NewWorkspaceID()
	topic := models.WorkspaceTopic(wid)
	sub := h.Subscribe(topic)

	// Kind/payload mismatch never reaches subscribers.
	ev := models.NewEvent(models.EventBlocksReconciled, wid, models.NewUserID(), "alice")
	require.Error(t, h.Publish(topic, ev))
	assert.Empty(t, sub.C)
}

func TestSubscriptionClose(t *testing.T) {
	h := testHub()
	defer h.Close()

	wid := models.NewWorkspaceID()
	topic := models.WorkspaceTopic(wid)
	sub := h.Subscribe(topic)
	assert.Equal(t, 1, h.SubscriberCount(topic))

	sub.Close()
	sub.Close() // idempotent
	assert.Equal(t, 0, h.SubscriberCount(topic))
	assert.Empty(t, h.Topics())

	_, open := <-sub.C
	assert.False(t, open)
}

func TestHubClose(t *testing.T) {
	h := testHub()

	wid := models.NewWorkspaceID()
	topic := models.WorkspaceTopic(wid)
	sub := h.Subscribe(topic)

	h.Close()
	_, open := <-sub.C
	assert.False(t, open)

	// Publishing after close is a quiet no-op.
	require.NoError(t, h.Publish(topic, cursorEvent(wid, models.NewUserID(), 1)))

	// Subscribing after close yields an already-closed channel.
	late := h.Subscribe(topic)
	_, open = <-late.C
	assert.False(t, open)
}

func TestPresenceCountsConnectionsPerUser(t *testing.T) {
	p := NewPresence()
	wid := models.NewWorkspaceID()
	alice := models.NewUserID()
	bob := models.NewUserID()

	assert.True(t, p.Join(wid, alice, "alice"))
	assert.False(t, p.Join(wid, alice, "alice"), "second tab is not a new join")
	assert.True(t, p.Join(wid, bob, "bob"))

	users := p.List(wid)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].UserName)
	assert.Equal(t, "bob", users[1].UserName)

	assert.False(t, p.Leave(wid, alice), "one tab still open")
	assert.True(t, p.Leave(wid, alice), "last tab closed")
	assert.False(t, p.Leave(wid, alice), "already gone")

	users = p.List(wid)
	require.Len(t, users, 1)
	assert.Equal(t, bob, users[0].UserID)
}

func TestPresenceWorkspacesAreIndependent(t *testing.T) {
	p := NewPresence()
	w1 := models.NewWorkspaceID()
	w2 := models.NewWorkspaceID()
	uid := models.NewUserID()

	p.Join(w1, uid, "alice")
	assert.Len(t, p.List(w1), 1)
	assert.Empty(t, p.List(w2))
}
