package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/notehub-io/notehub/pkg/models"
)

// EventHandler receives events from a LiveSession, in per-topic order, on
// the session's read goroutine. Handlers must not block.
type EventHandler func(models.Event)

// LiveSession is a WebSocket connection into a workspace's event stream.
// Events originated by the session's own user are dropped before the
// handler sees them: the editor already applied its local change, and
// replaying the server's echo would clobber newer unsaved edits.
type LiveSession struct {
	conn    *websocket.Conn
	userID  models.UserID
	handler EventHandler

	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

// Connect opens a live session into a workspace. The client must be
// authenticated; the token rides on the upgrade request's query string.
// userID is the local user, used to suppress echoes.
func (c *Client) Connect(ctx context.Context, workspaceID models.WorkspaceID, userID models.UserID, handler EventHandler) (*LiveSession, error) {
	wsURL, err := websocketURL(c.baseURL)
	if err != nil {
		return nil, err
	}
	wsURL += fmt.Sprintf("/api/ws?workspace=%s&token=%s", workspaceID, url.QueryEscape(c.authToken))

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if resp != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect live session: %w", err)
	}

	session := &LiveSession{
		conn:    conn,
		userID:  userID,
		handler: handler,
		done:    make(chan struct{}),
	}
	go session.readLoop()
	return session, nil
}

func websocketURL(baseURL string) (string, error) {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://"), nil
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://"), nil
	default:
		return "", fmt.Errorf("base URL %q is not http or https", baseURL)
	}
}

func (l *LiveSession) readLoop() {
	defer l.Close()
	for {
		var ev models.Event
		if err := l.conn.ReadJSON(&ev); err != nil {
			return
		}
		if ev.UserID == l.userID {
			continue
		}
		if l.handler != nil {
			l.handler(ev)
		}
	}
}

type liveMessage struct {
	Action        string         `json:"action"`
	PageID        *models.PageID `json:"page_id,omitempty"`
	BlockClientID string         `json:"block_client_id,omitempty"`
	Offset        int            `json:"offset,omitempty"`
}

func (l *LiveSession) send(msg liveMessage) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	return l.conn.WriteJSON(msg)
}

// SubscribePage starts delivery of the page's block-level events. Call it
// when the user opens a page.
func (l *LiveSession) SubscribePage(pageID models.PageID) error {
	return l.send(liveMessage{Action: "subscribe_page", PageID: &pageID})
}

// UnsubscribePage stops delivery of the page's block-level events.
func (l *LiveSession) UnsubscribePage(pageID models.PageID) error {
	return l.send(liveMessage{Action: "unsubscribe_page", PageID: &pageID})
}

// SendCursor relays the local caret position to everyone on the page.
func (l *LiveSession) SendCursor(pageID models.PageID, blockClientID string, offset int) error {
	return l.send(liveMessage{
		Action:        "cursor",
		PageID:        &pageID,
		BlockClientID: blockClientID,
		Offset:        offset,
	})
}

// Done is closed when the session ends, from either side.
func (l *LiveSession) Done() <-chan struct{} {
	return l.done
}

// Close tears the connection down. Safe to call more than once.
func (l *LiveSession) Close() error {
	var err error
	l.once.Do(func() {
		close(l.done)
		err = l.conn.Close()
	})
	return err
}
