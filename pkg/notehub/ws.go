package notehub

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/notehub-io/notehub/pkg/models"
	"github.com/notehub-io/notehub/pkg/realtime"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 45 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Browser clients connect cross-origin during development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClientMessage is what a connected client may send over the socket.
// Subscribe and unsubscribe manage per-page event delivery; cursor relays
// the caller's caret position to everyone on the page.
type wsClientMessage struct {
	Action        string         `json:"action"`
	PageID        *models.PageID `json:"page_id,omitempty"`
	BlockClientID string         `json:"block_client_id,omitempty"`
	Offset        int            `json:"offset,omitempty"`
}

// wsSession is one authenticated socket into a workspace. Events from the
// workspace topic and any subscribed page topics are funneled into a single
// outbound channel so the write pump stays a plain loop.
type wsSession struct {
	app         *App
	conn        *websocket.Conn
	user        *models.User
	workspaceID models.WorkspaceID

	mu       sync.Mutex
	pageSubs map[models.PageID]*realtime.Subscription
	outbound chan models.Event
	done     chan struct{}
	doneOnce sync.Once
}

// handleWebSocket upgrades GET /api/ws?workspace={id} into a realtime
// session. Presence is derived from the connection: the user appears in the
// workspace roster while at least one of their sockets is open.
func (a *App) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	workspaceID, err := models.ParseWorkspaceID(r.URL.Query().Get("workspace"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "workspace query parameter is required")
		return
	}
	user, _, ok := a.requireMember(w, r, workspaceID, false)
	if !ok {
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	session := &wsSession{
		app:         a,
		conn:        conn,
		user:        user,
		workspaceID: workspaceID,
		pageSubs:    make(map[models.PageID]*realtime.Subscription),
		outbound:    make(chan models.Event, 256),
		done:        make(chan struct{}),
	}

	workspaceSub := a.hub.Subscribe(models.WorkspaceTopic(workspaceID))
	go session.forward(workspaceSub)

	if first := a.presence.Join(workspaceID, user.ID, user.Name); first {
		ev := models.NewEvent(models.EventUserJoined, workspaceID, user.ID, user.Name)
		ev.Presence = &models.PresencePayload{UserName: user.Name, AvatarURL: user.AvatarURL}
		a.publish(models.WorkspaceTopic(workspaceID), ev)
	}

	go session.writePump()
	session.readPump()

	// readPump returned: the socket is gone. Tear down in reverse order.
	session.close()
	workspaceSub.Close()
	if last := a.presence.Leave(workspaceID, user.ID); last {
		ev := models.NewEvent(models.EventUserLeft, workspaceID, user.ID, user.Name)
		ev.Presence = &models.PresencePayload{UserName: user.Name, AvatarURL: user.AvatarURL}
		a.publish(models.WorkspaceTopic(workspaceID), ev)
	}
}

// publishPagePresence announces a user entering or leaving a page on that
// page's topic, so peers viewing the page can render who is there.
func (s *wsSession) publishPagePresence(kind models.EventKind, pageID models.PageID) {
	ev := models.NewEvent(kind, s.workspaceID, s.user.ID, s.user.Name)
	ev.Presence = &models.PresencePayload{
		UserName:  s.user.Name,
		AvatarURL: s.user.AvatarURL,
		PageID:    &pageID,
	}
	s.app.publish(models.PageTopic(s.workspaceID, pageID), ev)
}

// forward copies one subscription's events into the session's outbound
// channel. It exits when the subscription closes or the session ends.
func (s *wsSession) forward(sub *realtime.Subscription) {
	for ev := range sub.C {
		select {
		case s.outbound <- ev:
		case <-s.done:
			return
		}
	}
}

func (s *wsSession) close() {
	s.doneOnce.Do(func() { close(s.done) })
	s.mu.Lock()
	var left []models.PageID
	for id, sub := range s.pageSubs {
		sub.Close()
		delete(s.pageSubs, id)
		left = append(left, id)
	}
	s.mu.Unlock()
	// A dropped socket is an implicit leave from every page it watched.
	for _, id := range left {
		s.publishPagePresence(models.EventUserLeft, id)
	}
}

func (s *wsSession) subscribePage(pageID models.PageID) {
	s.mu.Lock()
	if _, ok := s.pageSubs[pageID]; ok {
		s.mu.Unlock()
		return
	}
	sub := s.app.hub.Subscribe(models.PageTopic(s.workspaceID, pageID))
	s.pageSubs[pageID] = sub
	go s.forward(sub)
	s.mu.Unlock()

	s.publishPagePresence(models.EventUserJoined, pageID)
}

func (s *wsSession) unsubscribePage(pageID models.PageID) {
	s.mu.Lock()
	sub, ok := s.pageSubs[pageID]
	if ok {
		delete(s.pageSubs, pageID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	// Announce before dropping the subscription so other viewers see the
	// leave even if this was the page's last subscriber.
	s.publishPagePresence(models.EventUserLeft, pageID)
	sub.Close()
}

func (s *wsSession) readPump() {
	s.conn.SetReadLimit(64 * 1024)
	_ = s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.app.log.Debug().Err(err).Msg("websocket read ended")
			}
			return
		}
		var msg wsClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.app.log.Warn().Err(err).Msg("dropping malformed websocket message")
			continue
		}
		s.handleMessage(msg)
	}
}

func (s *wsSession) handleMessage(msg wsClientMessage) {
	switch msg.Action {
	case "subscribe_page":
		if msg.PageID != nil {
			s.subscribePage(*msg.PageID)
		}
	case "unsubscribe_page":
		if msg.PageID != nil {
			s.unsubscribePage(*msg.PageID)
		}
	case "cursor":
		if msg.PageID == nil {
			return
		}
		ev := models.NewEvent(models.EventCursorMoved, s.workspaceID, s.user.ID, s.user.Name)
		ev.Cursor = &models.CursorPayload{
			PageID:        *msg.PageID,
			BlockClientID: msg.BlockClientID,
			Offset:        msg.Offset,
		}
		s.app.publish(models.PageTopic(s.workspaceID, *msg.PageID), ev)
	default:
		s.app.log.Warn().Str("action", msg.Action).Msg("unknown websocket action")
	}
}

// writePump serializes events onto the socket and keeps the connection
// alive with pings. Events are sent to every subscriber including the
// originator; clients drop their own echoes by comparing Event.UserID.
func (s *wsSession) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev := <-s.outbound:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteJSON(ev); err != nil {
				_ = s.conn.Close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = s.conn.Close()
				return
			}
		case <-s.done:
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteWait))
			_ = s.conn.Close()
			return
		}
	}
}
