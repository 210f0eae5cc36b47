// Package store defines the persistence interface for the notehub
// application and the error contract shared by its backends.
//
// Three backends implement [Store]: memory (tests and single-process demos),
// postgres (GORM over PostgreSQL, the default in production), and surrealdb
// (the SurrealDB document backend). Handlers and the realtime layer only
// ever see the interface, so backends are swappable by configuration.
//
// # Conventions
//
// Every method takes a context.Context for cancellation. Get lookups return
// (nil, nil) when the record does not exist; only operations that cannot
// proceed without the record return [ErrNotFound]. Write methods that
// validate their input return [ErrValidation] before touching storage.
// Deletes are soft and idempotent: deleting a record that is already gone
// succeeds.
package store

import (
	"context"

	"github.com/notehub-io/notehub/pkg/models"
)

// ReconcileResult is what ReconcileBlocks returns: the authoritative block
// list after the diff was applied, in position order, plus counts of each
// kind of change. All counts zero means the payload matched storage and
// nothing was written.
type ReconcileResult struct {
	Blocks  []*models.Block `json:"blocks"`
	Created int             `json:"created"`
	Updated int             `json:"updated"`
	Deleted int             `json:"deleted"`
}

// Store is the persistence interface for notehub.
//
// The two methods that carry the collaborative-editing semantics are
// ReconcileBlocks and ReorderPages; everything else is conventional CRUD.
type Store interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id models.UserID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id models.UserID) error

	// Workspace operations. ListWorkspaces returns the workspaces the user
	// is a member of, not just the ones they own.
	CreateWorkspace(ctx context.Context, workspace *models.Workspace) error
	GetWorkspace(ctx context.Context, id models.WorkspaceID) (*models.Workspace, error)
	UpdateWorkspace(ctx context.Context, workspace *models.Workspace) error
	DeleteWorkspace(ctx context.Context, id models.WorkspaceID) error
	ListWorkspaces(ctx context.Context, userID models.UserID) ([]*models.Workspace, error)

	// Membership operations. AddMember fails with ErrValidation if the user
	// already belongs to the workspace.
	AddMember(ctx context.Context, member *models.WorkspaceMember) error
	GetMember(ctx context.Context, workspaceID models.WorkspaceID, userID models.UserID) (*models.WorkspaceMember, error)
	UpdateMember(ctx context.Context, member *models.WorkspaceMember) error
	RemoveMember(ctx context.Context, workspaceID models.WorkspaceID, userID models.UserID) error
	ListMembers(ctx context.Context, workspaceID models.WorkspaceID) ([]*models.WorkspaceMember, error)

	// Page operations. CreatePage places the page after its last sibling
	// when SortOrder is zero and siblings exist. ListPages returns all live
	// pages of a workspace ordered by (parent, sort order).
	CreatePage(ctx context.Context, page *models.Page) error
	GetPage(ctx context.Context, id models.PageID) (*models.Page, error)
	UpdatePage(ctx context.Context, page *models.Page) error
	DeletePage(ctx context.Context, id models.PageID) error
	ListPages(ctx context.Context, workspaceID models.WorkspaceID) ([]*models.Page, error)
	ListChildPages(ctx context.Context, parentPageID models.PageID) ([]*models.Page, error)

	// ReorderPages applies a batch of page moves in one transaction. Either
	// every entry applies or none do: an entry referencing a page outside
	// the workspace fails the whole batch with ErrValidation, and a move
	// that would make a page its own ancestor fails it with ErrCycle.
	ReorderPages(ctx context.Context, workspaceID models.WorkspaceID, moves []models.PageReorder) error

	// Block operations. Blocks within a page are addressed by their
	// client-assigned ID as well as the server primary key. ListBlocks
	// returns live blocks in position order.
	CreateBlock(ctx context.Context, block *models.Block) error
	GetBlock(ctx context.Context, id models.BlockID) (*models.Block, error)
	GetBlockByClientID(ctx context.Context, pageID models.PageID, clientID string) (*models.Block, error)
	UpdateBlock(ctx context.Context, block *models.Block) error
	DeleteBlock(ctx context.Context, id models.BlockID) error
	ListBlocks(ctx context.Context, pageID models.PageID) ([]*models.Block, error)

	// ReconcileBlocks replaces a page's block list with the client's view
	// of it, in one transaction. Inputs are matched to stored blocks by
	// client ID: unmatched inputs become new blocks, matched inputs update
	// in place, and stored blocks absent from the input are soft-deleted.
	// Positions are rewritten densely (0..n-1) in input order.
	//
	// An empty input slice is a no-op that returns the current list; it is
	// never treated as "delete everything". A blank or duplicate client ID
	// fails the whole call with ErrValidation before anything is written.
	// Reconciling the same input twice yields identical state and a second
	// result with zero counts.
	ReconcileBlocks(ctx context.Context, pageID models.PageID, inputs []models.BlockInput) (*ReconcileResult, error)

	// Permission operations
	CreatePermission(ctx context.Context, permission *models.Permission) error
	GetPermissions(ctx context.Context, resourceType models.ResourceType, resourceID models.ResourceID) ([]*models.Permission, error)
	GetUserPermissions(ctx context.Context, userID models.UserID) ([]*models.Permission, error)
	UpdatePermission(ctx context.Context, permission *models.Permission) error
	DeletePermission(ctx context.Context, id models.PermissionID) error
	CheckPermission(ctx context.Context, userID models.UserID, resourceType models.ResourceType, resourceID models.ResourceID, level models.PermissionLevel) (bool, error)

	// Migrate creates or updates the backend schema.
	Migrate(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
