package models

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventKind identifies what happened. Every event carries exactly one
// payload struct matching its kind; consumers switch on Kind and read the
// corresponding field instead of digging through an untyped map.
type EventKind string

const (
	EventPageCreated      EventKind = "page_created"
	EventPageUpdated      EventKind = "page_updated"
	EventPageDeleted      EventKind = "page_deleted"
	EventPagesReordered   EventKind = "pages_reordered"
	EventBlockCreated     EventKind = "block_created"
	EventBlockUpdated     EventKind = "block_updated"
	EventBlockDeleted     EventKind = "block_deleted"
	EventBlocksReconciled EventKind = "blocks_reconciled"
	EventUserJoined       EventKind = "user_joined"
	EventUserLeft         EventKind = "user_left"
	EventCursorMoved      EventKind = "cursor_moved"
)

// WorkspaceTopic returns the broadcast topic carrying workspace-scoped
// events: page tree changes, reorders, and presence.
func WorkspaceTopic(id WorkspaceID) string {
	return fmt.Sprintf("workspace:%s", id)
}

// PageTopic returns the broadcast topic carrying block-level events for a
// single page. Subscribing to a page topic does not imply the workspace
// topic; clients subscribe to both while a page is open.
func PageTopic(workspaceID WorkspaceID, pageID PageID) string {
	return fmt.Sprintf("workspace:%s:page:%s", workspaceID, pageID)
}

// PagePayload describes a page lifecycle event. For deletions only the ID
// fields are meaningful.
type PagePayload struct {
	PageID       PageID  `json:"page_id"`
	ParentPageID *PageID `json:"parent_page_id,omitempty"`
	Title        string  `json:"title,omitempty"`
	SortOrder    int     `json:"sort_order"`
}

// ReorderPayload announces that the page tree changed shape. It is a coarse
// invalidation signal: it lists the moved page IDs but clients are expected
// to refetch the page list rather than replay moves.
type ReorderPayload struct {
	PageIDs []PageID `json:"page_ids"`
}

// BlockPayload describes a single-block event.
type BlockPayload struct {
	PageID   PageID  `json:"page_id"`
	BlockID  BlockID `json:"block_id"`
	ClientID string  `json:"client_id"`
	Position int     `json:"position"`
	Block    *Block  `json:"block,omitempty"`
}

// ReconcilePayload announces that a page's block list was reconciled in one
// transaction. Counts summarize the diff; Blocks is the authoritative
// post-reconcile list in position order.
type ReconcilePayload struct {
	PageID  PageID   `json:"page_id"`
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Deleted int      `json:"deleted"`
	Blocks  []*Block `json:"blocks,omitempty"`
}

// PresencePayload describes a user joining or leaving. A nil PageID means
// the whole workspace session; otherwise the user entered or left a single
// page. Presence is ephemeral and never persisted.
type PresencePayload struct {
	UserName  string  `json:"user_name"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	PageID    *PageID `json:"page_id,omitempty"`
}

// CursorPayload describes a cursor move inside a page.
type CursorPayload struct {
	PageID        PageID `json:"page_id"`
	BlockClientID string `json:"block_client_id,omitempty"`
	Offset        int    `json:"offset"`
}

// Event is the envelope broadcast over the realtime fabric. ID is a ULID so
// events sort by emission time without a coordination point. UserID is the
// originator; subscribers suppress their own echoes by comparing it against
// the local user. Username is the originator's display name so receivers
// can label remote activity without a lookup.
type Event struct {
	ID          string      `json:"id"`
	Kind        EventKind   `json:"kind"`
	WorkspaceID WorkspaceID `json:"workspace_id"`
	UserID      UserID      `json:"user_id"`
	Username    string      `json:"username,omitempty"`
	OccurredAt  time.Time   `json:"occurred_at"`

	Page      *PagePayload      `json:"page,omitempty"`
	Reorder   *ReorderPayload   `json:"reorder,omitempty"`
	Block     *BlockPayload     `json:"block,omitempty"`
	Reconcile *ReconcilePayload `json:"reconcile,omitempty"`
	Presence  *PresencePayload  `json:"presence,omitempty"`
	Cursor    *CursorPayload    `json:"cursor,omitempty"`
}

// NewEvent builds an envelope with a fresh ULID and timestamp. The caller
// attaches the payload field for the kind.
func NewEvent(kind EventKind, workspaceID WorkspaceID, userID UserID, username string) Event {
	return Event{
		ID:          ulid.Make().String(),
		Kind:        kind,
		WorkspaceID: workspaceID,
		UserID:      userID,
		Username:    username,
		OccurredAt:  time.Now().UTC(),
	}
}

// Validate checks that the envelope carries the payload its kind requires
// and no other. Malformed events are dropped at the publish boundary rather
// than delivered to subscribers.
func (e Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("event missing ID")
	}
	if e.WorkspaceID.IsZero() {
		return fmt.Errorf("event missing workspace ID")
	}
	payloads := 0
	for _, present := range []bool{
		e.Page != nil, e.Reorder != nil, e.Block != nil,
		e.Reconcile != nil, e.Presence != nil, e.Cursor != nil,
	} {
		if present {
			payloads++
		}
	}

	switch e.Kind {
	case EventPageCreated, EventPageUpdated, EventPageDeleted:
		if e.Page == nil {
			return fmt.Errorf("%s event missing page payload", e.Kind)
		}
	case EventPagesReordered:
		if e.Reorder == nil {
			return fmt.Errorf("%s event missing reorder payload", e.Kind)
		}
	case EventBlockCreated, EventBlockUpdated, EventBlockDeleted:
		if e.Block == nil {
			return fmt.Errorf("%s event missing block payload", e.Kind)
		}
	case EventBlocksReconciled:
		if e.Reconcile == nil {
			return fmt.Errorf("%s event missing reconcile payload", e.Kind)
		}
	case EventUserJoined, EventUserLeft:
		if e.Presence == nil {
			return fmt.Errorf("%s event missing presence payload", e.Kind)
		}
	case EventCursorMoved:
		if e.Cursor == nil {
			return fmt.Errorf("%s event missing cursor payload", e.Kind)
		}
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	if payloads != 1 {
		return fmt.Errorf("%s event carries %d payloads, want exactly one", e.Kind, payloads)
	}
	return nil
}
