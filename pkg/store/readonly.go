package store

import (
	"context"

	"github.com/notehub-io/notehub/pkg/models"
)

// ReadOnlyStore wraps a Store and rejects writes while isReadOnly reports
// true. The read-only state is sampled per call, so the application can flip
// into and out of read-only mode (for example around a backend migration)
// without recreating the store. Reads always pass through.
type ReadOnlyStore struct {
	Store
	isReadOnly func() bool
}

// NewReadOnlyStore creates a read-only wrapper around a store
func NewReadOnlyStore(store Store, isReadOnly func() bool) Store {
	return &ReadOnlyStore{
		Store:      store,
		isReadOnly: isReadOnly,
	}
}

// Unwrap returns the underlying store
func (r *ReadOnlyStore) Unwrap() Store {
	return r.Store
}

func (r *ReadOnlyStore) check() error {
	if r.isReadOnly() {
		return ErrReadOnly
	}
	return nil
}

// Write operations check read-only mode first.

func (r *ReadOnlyStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := r.check(); err != nil {
		return err
	}
	return r.Store.CreateUser(ctx, user)
}

func (r *ReadOnlyStore) UpdateUser(ctx context.Context, user *models.User) error {
	if err := r.check(); err != nil {
		return err
	}
	return r.Store.UpdateUser(ctx, user)
}

func (r *ReadOnlyStore) DeleteUser(ctx context.Context, id models.UserID) error {
	if err := r.check(); err != nil {
		return err
	}
	return r.Store.DeleteUser(ctx, id)
}

func (r *ReadOnlyStore) CreateWorkspace(ctx context.Context, workspace *models.Workspace) error {
	if err := r.check(); err != nil {
		return err
	}
	return r.Store.CreateWorkspace(ctx, workspace)
}

func (r *ReadOnlyStore) UpdateWorkspace(ctx context.Context, workspace *models.Workspace) error {
	if err := r.check(); err != nil {
		return err
	}
	return r.Store.UpdateWorkspace(ctx, workspace)
}

func (r *ReadOnlyStore) DeleteWorkspace(ctx context.Context, id models.WorkspaceID) error {
	if err := r.check(); err != nil {
		return err
	}
	return r.Store.DeleteWorkspace(ctx, id)
}

func (r *ReadOnlyStore) AddMember(ctx context.Context, member *models.WorkspaceMember) error {
	if err := r.check(); err != nil {
		return err
	}
	return r.Store.AddMember(ctx, member)
}

func (r *ReadOnlyStore) UpdateMember(ctx context.Context, member *models.WorkspaceMember) error {
	if err := r.check(); err != nil {
		return err
	}
	return r.Store.UpdateMember(ctx, member)
}

func (r *ReadOnlyStore) RemoveMember(ctx context.Context, workspaceID models.WorkspaceID, userID models.UserID) error {
	if err := r.check(); err != nil {
		return err
	}
	return r.Store.RemoveMember(ctx, workspaceID, userID)
}

func (r *ReadOnlyStore) CreatePage(ctx context.Context, page *models.Page) error {
	if err := r.check(); err != nil {
		return err
	}
	return r.Store.CreatePage(ctx, page)
}

func (r *ReadOnlyStore) UpdatePage(ctx context.Context, page *models.Page) error {
	if err := r.check(); err != nil {
		return err
	}
	return r.Store.UpdatePage(ctx, page)
}

func (r *ReadOnlyStore) DeletePage(ctx context.Context, id models.PageID) error {
	if err := r.check(); err != nil {
		return err
	}
	return r.Store.DeletePage(ctx, id)
}

func (r *ReadOnlyStore) ReorderPages(ctx context.Context, workspaceID models.WorkspaceID, moves []models.PageReorder) error {
	if err := r.check(); err != nil {
		return err
	}
	return r.Store.ReorderPages(ctx, workspaceID, moves)
}

func (r *ReadOnlyStore) CreateBlock(ctx context.Context, block *models.Block) error {
	if err := r.check(); err != nil {
		return err
	}
	return r.Store.CreateBlock(ctx, block)
}

func (r *ReadOnlyStore) UpdateBlock(ctx context.Context, block *models.Block) error {
	if err := r.check(); err != nil {
		return err
	}
	return r.Store.UpdateBlock(ctx, block)
}

func (r *ReadOnlyStore) DeleteBlock(ctx context.Context, id models.BlockID) error {
	if err := r.check(); err != nil {
		return err
	}
	return r.Store.DeleteBlock(ctx, id)
}

func (r *ReadOnlyStore) ReconcileBlocks(ctx context.Context, pageID models.PageID, inputs []models.BlockInput) (*ReconcileResult, error) {
	if err := r.check(); err != nil {
		return nil, err
	}
	return r.Store.ReconcileBlocks(ctx, pageID, inputs)
}

func (r *ReadOnlyStore) CreatePermission(ctx context.Context, permission *models.Permission) error {
	if err := r.check(); err != nil {
		return err
	}
	return r.Store.CreatePermission(ctx, permission)
}

func (r *ReadOnlyStore) UpdatePermission(ctx context.Context, permission *models.Permission) error {
	if err := r.check(); err != nil {
		return err
	}
	return r.Store.UpdatePermission(ctx, permission)
}

func (r *ReadOnlyStore) DeletePermission(ctx context.Context, id models.PermissionID) error {
	if err := r.check(); err != nil {
		return err
	}
	return r.Store.DeletePermission(ctx, id)
}

func (r *ReadOnlyStore) Migrate(ctx context.Context) error {
	if err := r.check(); err != nil {
		return err
	}
	return r.Store.Migrate(ctx)
}
