package realtime

import (
	"sort"
	"sync"

	"github.com/notehub-io/notehub/pkg/models"
)

// PresenceUser is one user currently connected to a workspace.
type PresenceUser struct {
	UserID   models.UserID `json:"user_id"`
	UserName string        `json:"user_name"`
}

// Presence tracks which users have live connections to each workspace. It
// is connection-derived and entirely in memory: state is rebuilt naturally
// as clients reconnect, and a restart simply empties it. A user with two
// connections to the same workspace counts once and leaves only when the
// last connection goes.
type Presence struct {
	mu         sync.RWMutex
	workspaces map[models.WorkspaceID]map[models.UserID]*presenceEntry
}

type presenceEntry struct {
	name  string
	conns int
}

// NewPresence creates an empty presence tracker
func NewPresence() *Presence {
	return &Presence{
		workspaces: make(map[models.WorkspaceID]map[models.UserID]*presenceEntry),
	}
}

// Join records a connection for the user and reports whether this is their
// first connection to the workspace, in which case a UserJoined event
// should be broadcast.
func (p *Presence) Join(workspaceID models.WorkspaceID, userID models.UserID, userName string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	users, ok := p.workspaces[workspaceID]
	if !ok {
		users = make(map[models.UserID]*presenceEntry)
		p.workspaces[workspaceID] = users
	}
	entry, ok := users[userID]
	if !ok {
		users[userID] = &presenceEntry{name: userName, conns: 1}
		return true
	}
	entry.conns++
	return false
}

// Leave records a dropped connection and reports whether it was the user's
// last one, in which case a UserLeft event should be broadcast.
func (p *Presence) Leave(workspaceID models.WorkspaceID, userID models.UserID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	users, ok := p.workspaces[workspaceID]
	if !ok {
		return false
	}
	entry, ok := users[userID]
	if !ok {
		return false
	}
	entry.conns--
	if entry.conns > 0 {
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(p.workspaces, workspaceID)
	}
	return true
}

// List returns the users currently present in a workspace, sorted by name
// for stable output.
func (p *Presence) List(workspaceID models.WorkspaceID) []PresenceUser {
	p.mu.RLock()
	defer p.mu.RUnlock()

	users := p.workspaces[workspaceID]
	out := make([]PresenceUser, 0, len(users))
	for id, entry := range users {
		out = append(out, PresenceUser{UserID: id, UserName: entry.name})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserName != out[j].UserName {
			return out[i].UserName < out[j].UserName
		}
		return out[i].UserID.String() < out[j].UserID.String()
	})
	return out
}
