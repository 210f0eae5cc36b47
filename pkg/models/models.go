package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// BlockType represents the type of content block
type BlockType string

const (
	BlockTypeParagraph BlockType = "paragraph"
	BlockTypeHeading1  BlockType = "heading_1"
	BlockTypeHeading2  BlockType = "heading_2"
	BlockTypeHeading3  BlockType = "heading_3"
	BlockTypeBullet    BlockType = "bulleted_list"
	BlockTypeNumbered  BlockType = "numbered_list"
	BlockTypeCode      BlockType = "code"
	BlockTypeQuote     BlockType = "quote"
	BlockTypeImage     BlockType = "image"
	BlockTypeTodo      BlockType = "todo"
)

// MemberRole represents a user's role inside a workspace
type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleEditor MemberRole = "editor"
	RoleViewer MemberRole = "viewer"
)

// CanWrite reports whether the role permits mutating workspace content.
func (r MemberRole) CanWrite() bool {
	return r == RoleOwner || r == RoleEditor
}

// PermissionLevel represents the access level for a shared resource
type PermissionLevel string

const (
	PermissionRead  PermissionLevel = "read"
	PermissionWrite PermissionLevel = "write"
	PermissionAdmin PermissionLevel = "admin"
)

// ResourceType represents the type of resource for permissions
type ResourceType string

const (
	ResourceWorkspace ResourceType = "workspace"
	ResourcePage      ResourceType = "page"
)

// JSONMap is a flexible key-value map for block content and page properties.
// The structure varies by block type: a paragraph block carries "text" and
// inline formatting runs, an image block carries "url" and "caption", a todo
// block carries "text" and "checked". Storing it as a schemaless map keeps
// the content queryable in PostgreSQL (JSONB) and maps directly onto
// SurrealDB's object type without a translation layer.
type JSONMap map[string]any

// Value implements the driver.Valuer interface for database storage
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for database retrieval
func (j *JSONMap) Scan(value any) error {
	if value == nil {
		*j = make(map[string]any)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		bytes = []byte(value.(string))
	}
	return json.Unmarshal(bytes, j)
}

// Clone returns a shallow copy of the map. Nested values are shared.
func (j JSONMap) Clone() JSONMap {
	if j == nil {
		return nil
	}
	out := make(JSONMap, len(j))
	for k, v := range j {
		out[k] = v
	}
	return out
}

// User represents a user account using typed IDs
type User struct {
	ID           UserID         `gorm:"type:uuid;primary_key" json:"id"`
	Email        string         `gorm:"unique;not null" json:"email"`
	Name         string         `gorm:"not null" json:"name"`
	PasswordHash string         `gorm:"not null" json:"-"`
	AvatarURL    string         `json:"avatar_url,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// BeforeCreate hook to generate ID if not set
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID.IsZero() {
		u.ID = NewUserID()
	}
	return nil
}

// Workspace represents a top-level container for pages and members
type Workspace struct {
	ID        WorkspaceID    `gorm:"type:uuid;primary_key" json:"id"`
	Name      string         `gorm:"not null" json:"name"`
	Icon      string         `json:"icon,omitempty"`
	OwnerID   UserID         `gorm:"type:uuid;not null" json:"owner_id"`
	Owner     *User          `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// BeforeCreate hook to generate ID if not set
func (w *Workspace) BeforeCreate(tx *gorm.DB) error {
	if w.ID.IsZero() {
		w.ID = NewWorkspaceID()
	}
	return nil
}

// WorkspaceMember links a user to a workspace with a role.
// A user appears at most once per workspace.
type WorkspaceMember struct {
	ID          MembershipID `gorm:"type:uuid;primary_key" json:"id"`
	WorkspaceID WorkspaceID  `gorm:"type:uuid;not null;uniqueIndex:idx_workspace_user" json:"workspace_id"`
	UserID      UserID       `gorm:"type:uuid;not null;uniqueIndex:idx_workspace_user" json:"user_id"`
	User        *User        `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role        MemberRole   `gorm:"not null" json:"role"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// BeforeCreate hook to generate ID if not set
func (m *WorkspaceMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID.IsZero() {
		m.ID = NewMembershipID()
	}
	return nil
}

// Page represents a document within a workspace. Pages form a tree through
// ParentPageID and are ordered among their siblings by SortOrder. Deletion
// is soft so a page can be restored together with its blocks.
type Page struct {
	ID           PageID         `gorm:"type:uuid;primary_key" json:"id"`
	WorkspaceID  WorkspaceID    `gorm:"type:uuid;not null;index" json:"workspace_id"`
	Workspace    *Workspace     `gorm:"foreignKey:WorkspaceID" json:"workspace,omitempty"`
	ParentPageID *PageID        `gorm:"type:uuid" json:"parent_page_id,omitempty"`
	ParentPage   *Page          `gorm:"foreignKey:ParentPageID" json:"parent_page,omitempty"`
	Title        string         `json:"title"`
	Icon         string         `json:"icon,omitempty"`
	CoverImage   string         `json:"cover_image,omitempty"`
	SortOrder    int            `gorm:"not null;default:0" json:"sort_order"`
	Properties   JSONMap        `gorm:"type:jsonb" json:"properties,omitempty"`
	CreatedBy    UserID         `gorm:"type:uuid;not null" json:"created_by"`
	Creator      *User          `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	LastEditedBy *UserID        `gorm:"type:uuid" json:"last_edited_by,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// BeforeCreate hook to generate ID if not set
func (p *Page) BeforeCreate(tx *gorm.DB) error {
	if p.ID.IsZero() {
		p.ID = NewPageID()
	}
	return nil
}

// Block represents a unit of content within a page.
//
// Blocks carry two identifiers. ID is the server-side primary key. ClientID
// is assigned by the editor when the block is first typed, before the server
// has ever seen it, and is the identity used by block reconciliation: the
// editor submits its full block list keyed by ClientID and the server diffs
// it against what is stored. ClientID is unique within a page, never reused
// after deletion, and never rewritten by the server.
//
// Position is the block's index within its page. The store rewrites
// positions densely (0..n-1) on every reconcile, so readers can rely on
// positions having no gaps or duplicates.
type Block struct {
	ID            BlockID        `gorm:"type:uuid;primary_key" json:"id"`
	PageID        PageID         `gorm:"type:uuid;not null;index;uniqueIndex:idx_page_client" json:"page_id"`
	Page          *Page          `gorm:"foreignKey:PageID" json:"page,omitempty"`
	ParentBlockID *BlockID       `gorm:"type:uuid;index" json:"parent_block_id,omitempty"`
	ClientID      string         `gorm:"not null;uniqueIndex:idx_page_client,where:deleted_at IS NULL" json:"client_id"`
	Type          BlockType      `gorm:"not null" json:"type"`
	Content       JSONMap        `gorm:"type:jsonb" json:"content"`
	Properties    JSONMap        `gorm:"type:jsonb" json:"properties,omitempty"`
	Position      int            `gorm:"not null" json:"position"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// BeforeCreate hook to generate ID if not set
func (b *Block) BeforeCreate(tx *gorm.DB) error {
	if b.ID.IsZero() {
		b.ID = NewBlockID()
	}
	return nil
}

// BlockInput is the client's view of a single block inside a reconcile
// request. The client does not know server IDs, so blocks are addressed by
// ClientID only. Position is the index the client wants; the store rewrites
// all positions densely after applying the diff, so only relative order
// matters.
type BlockInput struct {
	ClientID      string    `json:"client_id"`
	ParentBlockID *BlockID  `json:"parent_block_id,omitempty"`
	Type          BlockType `json:"type"`
	Content       JSONMap   `json:"content"`
	Properties    JSONMap   `json:"properties,omitempty"`
	Position      int       `json:"position"`
}

// PageReorder is one entry of a batch page move. A nil ParentPageID moves
// the page to the workspace root.
type PageReorder struct {
	PageID       PageID  `json:"page_id"`
	ParentPageID *PageID `json:"parent_page_id,omitempty"`
	SortOrder    int     `json:"sort_order"`
}

// Permission represents access granted on a resource to a user outside of
// workspace membership, for example a single page shared with a guest.
type Permission struct {
	ID              PermissionID    `gorm:"type:uuid;primary_key" json:"id"`
	ResourceType    ResourceType    `gorm:"not null" json:"resource_type"`
	ResourceID      ResourceID      `gorm:"type:uuid;not null" json:"resource_id"`
	UserID          UserID          `gorm:"type:uuid;not null" json:"user_id"`
	User            *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	PermissionLevel PermissionLevel `gorm:"not null" json:"permission_level"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// BeforeCreate hook to generate ID and set resource table
func (p *Permission) BeforeCreate(tx *gorm.DB) error {
	if p.ID.IsZero() {
		p.ID = NewPermissionID()
	}
	p.ResourceID.SetTableForResourceType(p.ResourceType)
	return nil
}
