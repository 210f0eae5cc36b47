package notehub

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notehub-io/notehub/pkg/models"
	"github.com/notehub-io/notehub/pkg/realtime"
)

// dialWS opens an authenticated socket into a workspace on the test server.
func dialWS(t *testing.T, s *testServer, token string, workspaceID models.WorkspaceID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.ts.URL, "http") +
		fmt.Sprintf("/api/ws?workspace=%s&token=%s", workspaceID, token)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) models.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var ev models.Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

// waitForSubscribers blocks until a topic has at least n hub subscribers,
// bridging the gap between a client sending subscribe_page and the server
// processing it.
func waitForSubscribers(t *testing.T, hub *realtime.Hub, topic string, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.SubscriberCount(topic) >= n
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketRejectsOutsiders(t *testing.T) {
	s := newTestServer(t)
	aliceToken, _ := s.signUp("alice@example.com", "Alice")
	bobToken, _ := s.signUp("bob@example.com", "Bob")
	ws := s.createWorkspace(aliceToken, "Docs")

	url := "ws" + strings.TrimPrefix(s.ts.URL, "http") +
		fmt.Sprintf("/api/ws?workspace=%s&token=%s", ws.ID, bobToken)
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebSocketBroadcastsWorkspaceEvents(t *testing.T) {
	s := newTestServer(t)
	aliceToken, alice := s.signUp("alice@example.com", "Alice")
	bobToken, bob := s.signUp("bob@example.com", "Bob")
	ws := s.createWorkspace(aliceToken, "Docs")
	status := s.do("POST", fmt.Sprintf("/api/workspaces/%s/members", ws.ID), aliceToken, AddMemberRequest{
		UserID: bob.ID,
		Role:   models.RoleEditor,
	}, nil)
	require.Equal(t, http.StatusCreated, status)

	aliceConn := dialWS(t, s, aliceToken, ws.ID)
	waitForSubscribers(t, s.app.Hub(), models.WorkspaceTopic(ws.ID), 1)

	// Bob connecting for the first time announces his presence.
	dialWS(t, s, bobToken, ws.ID)
	joined := readEvent(t, aliceConn)
	assert.Equal(t, models.EventUserJoined, joined.Kind)
	assert.Equal(t, bob.ID, joined.UserID)
	require.NotNil(t, joined.Presence)
	assert.Equal(t, "Bob", joined.Presence.UserName)

	// The presence roster now lists both users.
	var roster []realtime.PresenceUser
	status = s.do("GET", fmt.Sprintf("/api/workspaces/%s/presence", ws.ID), aliceToken, nil, &roster)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, roster, 2)

	// A page created over REST reaches every workspace subscriber,
	// including the originator. Clients filter their own echoes.
	page := s.createPage(aliceToken, ws.ID, "Announcements")
	created := readEvent(t, aliceConn)
	assert.Equal(t, models.EventPageCreated, created.Kind)
	assert.Equal(t, alice.ID, created.UserID)
	require.NotNil(t, created.Page)
	assert.Equal(t, page.ID, created.Page.PageID)
}

func TestWebSocketPageSubscriptionAndCursor(t *testing.T) {
	s := newTestServer(t)
	aliceToken, _ := s.signUp("alice@example.com", "Alice")
	bobToken, bob := s.signUp("bob@example.com", "Bob")
	ws := s.createWorkspace(aliceToken, "Docs")
	status := s.do("POST", fmt.Sprintf("/api/workspaces/%s/members", ws.ID), aliceToken, AddMemberRequest{
		UserID: bob.ID,
		Role:   models.RoleEditor,
	}, nil)
	require.Equal(t, http.StatusCreated, status)
	page := s.createPage(aliceToken, ws.ID, "Shared doc")

	aliceConn := dialWS(t, s, aliceToken, ws.ID)
	waitForSubscribers(t, s.app.Hub(), models.WorkspaceTopic(ws.ID), 1)
	bobConn := dialWS(t, s, bobToken, ws.ID)

	// Alice opens the page; Bob moves his cursor in it.
	require.NoError(t, aliceConn.WriteJSON(wsClientMessage{Action: "subscribe_page", PageID: &page.ID}))
	topic := models.PageTopic(ws.ID, page.ID)
	waitForSubscribers(t, s.app.Hub(), topic, 1)

	require.NoError(t, bobConn.WriteJSON(wsClientMessage{
		Action:        "cursor",
		PageID:        &page.ID,
		BlockClientID: "c1",
		Offset:        12,
	}))

	// Alice's first page-topic event may arrive after Bob's join event on
	// the workspace topic; skip until the cursor shows up.
	var ev models.Event
	for {
		ev = readEvent(t, aliceConn)
		if ev.Kind == models.EventCursorMoved {
			break
		}
	}
	assert.Equal(t, bob.ID, ev.UserID)
	require.NotNil(t, ev.Cursor)
	assert.Equal(t, page.ID, ev.Cursor.PageID)
	assert.Equal(t, "c1", ev.Cursor.BlockClientID)
	assert.Equal(t, 12, ev.Cursor.Offset)

	// Unsubscribing stops page-topic delivery.
	require.NoError(t, aliceConn.WriteJSON(wsClientMessage{Action: "unsubscribe_page", PageID: &page.ID}))
	require.Eventually(t, func() bool {
		return s.app.Hub().SubscriberCount(topic) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketPagePresence(t *testing.T) {
	s := newTestServer(t)
	aliceToken, _ := s.signUp("alice@example.com", "Alice")
	bobToken, bob := s.signUp("bob@example.com", "Bob")
	ws := s.createWorkspace(aliceToken, "Docs")
	status := s.do("POST", fmt.Sprintf("/api/workspaces/%s/members", ws.ID), aliceToken, AddMemberRequest{
		UserID: bob.ID,
		Role:   models.RoleEditor,
	}, nil)
	require.Equal(t, http.StatusCreated, status)
	page := s.createPage(aliceToken, ws.ID, "Shared doc")
	topic := models.PageTopic(ws.ID, page.ID)

	aliceConn := dialWS(t, s, aliceToken, ws.ID)
	waitForSubscribers(t, s.app.Hub(), models.WorkspaceTopic(ws.ID), 1)
	bobConn := dialWS(t, s, bobToken, ws.ID)

	require.NoError(t, aliceConn.WriteJSON(wsClientMessage{Action: "subscribe_page", PageID: &page.ID}))
	waitForSubscribers(t, s.app.Hub(), topic, 1)

	// Bob entering the page announces him on the page topic, with enough
	// detail for Alice to render the peer without a lookup.
	require.NoError(t, bobConn.WriteJSON(wsClientMessage{Action: "subscribe_page", PageID: &page.ID}))
	joined := readPagePresence(t, aliceConn, models.EventUserJoined, bob.ID)
	assert.Equal(t, "Bob", joined.Username)
	assert.Equal(t, "Bob", joined.Presence.UserName)
	assert.Equal(t, page.ID, *joined.Presence.PageID)

	// Leaving the page explicitly announces the leave there too.
	require.NoError(t, bobConn.WriteJSON(wsClientMessage{Action: "unsubscribe_page", PageID: &page.ID}))
	left := readPagePresence(t, aliceConn, models.EventUserLeft, bob.ID)
	assert.Equal(t, page.ID, *left.Presence.PageID)

	// A dropped socket counts as leaving every page it watched.
	require.NoError(t, bobConn.WriteJSON(wsClientMessage{Action: "subscribe_page", PageID: &page.ID}))
	readPagePresence(t, aliceConn, models.EventUserJoined, bob.ID)
	require.NoError(t, bobConn.Close())
	left = readPagePresence(t, aliceConn, models.EventUserLeft, bob.ID)
	assert.Equal(t, page.ID, *left.Presence.PageID)
}

// readPagePresence reads events until it sees a page-scoped presence event
// of the wanted kind from the wanted user, skipping workspace-level
// presence and the reader's own page events.
func readPagePresence(t *testing.T, conn *websocket.Conn, kind models.EventKind, from models.UserID) models.Event {
	t.Helper()
	for {
		ev := readEvent(t, conn)
		if ev.Kind != kind || ev.UserID != from {
			continue
		}
		if ev.Presence == nil || ev.Presence.PageID == nil {
			continue
		}
		return ev
	}
}

func TestWebSocketDisconnectAnnouncesLeave(t *testing.T) {
	s := newTestServer(t)
	aliceToken, _ := s.signUp("alice@example.com", "Alice")
	bobToken, bob := s.signUp("bob@example.com", "Bob")
	ws := s.createWorkspace(aliceToken, "Docs")
	status := s.do("POST", fmt.Sprintf("/api/workspaces/%s/members", ws.ID), aliceToken, AddMemberRequest{
		UserID: bob.ID,
		Role:   models.RoleViewer,
	}, nil)
	require.Equal(t, http.StatusCreated, status)

	aliceConn := dialWS(t, s, aliceToken, ws.ID)
	waitForSubscribers(t, s.app.Hub(), models.WorkspaceTopic(ws.ID), 1)

	bobConn := dialWS(t, s, bobToken, ws.ID)
	joined := readEvent(t, aliceConn)
	require.Equal(t, models.EventUserJoined, joined.Kind)

	require.NoError(t, bobConn.Close())
	left := readEvent(t, aliceConn)
	assert.Equal(t, models.EventUserLeft, left.Kind)
	assert.Equal(t, bob.ID, left.UserID)

	var roster []realtime.PresenceUser
	status = s.do("GET", fmt.Sprintf("/api/workspaces/%s/presence", ws.ID), aliceToken, nil, &roster)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, roster, 1)
	assert.Equal(t, "Alice", roster[0].UserName)
}
