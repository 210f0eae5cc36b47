// Package postgres implements the store.Store interface on PostgreSQL
// using GORM.
//
// This is the default production backend. Individual CRUD operations rely
// on GORM's implicit per-statement transactions; the two multi-row
// operations with atomicity requirements, ReconcileBlocks and ReorderPages,
// run inside explicit transactions so a mid-batch failure rolls back every
// row they touched.
//
// Soft deletion is handled by gorm.DeletedAt on the models: GORM filters
// deleted rows out of queries and turns Delete into an update, which is
// what lets a deleted page keep its blocks for restoration.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/notehub-io/notehub/pkg/models"
	"github.com/notehub-io/notehub/pkg/store"
)

// PostgresStore implements the Store interface using PostgreSQL with GORM.
type PostgresStore struct {
	db *gorm.DB
}

var _ store.Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new PostgreSQL store from a DSN.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an existing gorm.DB, which lets tests share
// a connection or substitute another GORM dialector.
func NewPostgresStoreFromDB(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates or updates the schema with GORM's AutoMigrate. Safe to
// run repeatedly; it only adds missing tables, columns, and indexes.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.Workspace{},
		&models.WorkspaceMember{},
		&models.Page{},
		&models.Block{},
		&models.Permission{},
	)
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// User operations

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

func (s *PostgresStore) GetUser(ctx context.Context, id models.UserID) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (s *PostgresStore) UpdateUser(ctx context.Context, user *models.User) error {
	return s.db.WithContext(ctx).Save(user).Error
}

func (s *PostgresStore) DeleteUser(ctx context.Context, id models.UserID) error {
	return s.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id).Error
}

// Workspace operations

// CreateWorkspace creates the workspace and its owner membership together.
func (s *PostgresStore) CreateWorkspace(ctx context.Context, workspace *models.Workspace) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(workspace).Error; err != nil {
			return err
		}
		member := &models.WorkspaceMember{
			WorkspaceID: workspace.ID,
			UserID:      workspace.OwnerID,
			Role:        models.RoleOwner,
		}
		return tx.Create(member).Error
	})
}

func (s *PostgresStore) GetWorkspace(ctx context.Context, id models.WorkspaceID) (*models.Workspace, error) {
	var workspace models.Workspace
	err := s.db.WithContext(ctx).First(&workspace, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &workspace, nil
}

func (s *PostgresStore) UpdateWorkspace(ctx context.Context, workspace *models.Workspace) error {
	return s.db.WithContext(ctx).Save(workspace).Error
}

// DeleteWorkspace soft-deletes the workspace together with its pages and
// their blocks in one transaction; a deleted workspace leaves nothing
// reachable behind.
func (s *PostgresStore) DeleteWorkspace(ctx context.Context, id models.WorkspaceID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pageIDs []models.PageID
		if err := tx.Model(&models.Page{}).Where("workspace_id = ?", id).Pluck("id", &pageIDs).Error; err != nil {
			return err
		}
		if len(pageIDs) > 0 {
			if err := tx.Where("page_id IN ?", pageIDs).Delete(&models.Block{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", pageIDs).Delete(&models.Page{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Workspace{}, "id = ?", id).Error
	})
}

func (s *PostgresStore) ListWorkspaces(ctx context.Context, userID models.UserID) ([]*models.Workspace, error) {
	var workspaces []*models.Workspace
	err := s.db.WithContext(ctx).
		Joins("JOIN workspace_members ON workspace_members.workspace_id = workspaces.id").
		Where("workspace_members.user_id = ?", userID).
		Order("workspaces.created_at").
		Find(&workspaces).Error
	return workspaces, err
}

// Membership operations

func (s *PostgresStore) AddMember(ctx context.Context, member *models.WorkspaceMember) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.WorkspaceMember{}).
		Where("workspace_id = ? AND user_id = ?", member.WorkspaceID, member.UserID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: user %s is already a member", store.ErrValidation, member.UserID)
	}
	return s.db.WithContext(ctx).Create(member).Error
}

func (s *PostgresStore) GetMember(ctx context.Context, workspaceID models.WorkspaceID, userID models.UserID) (*models.WorkspaceMember, error) {
	var member models.WorkspaceMember
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

func (s *PostgresStore) UpdateMember(ctx context.Context, member *models.WorkspaceMember) error {
	return s.db.WithContext(ctx).Save(member).Error
}

func (s *PostgresStore) RemoveMember(ctx context.Context, workspaceID models.WorkspaceID, userID models.UserID) error {
	return s.db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Delete(&models.WorkspaceMember{}).Error
}

func (s *PostgresStore) ListMembers(ctx context.Context, workspaceID models.WorkspaceID) ([]*models.WorkspaceMember, error) {
	var members []*models.WorkspaceMember
	err := s.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at").
		Find(&members).Error
	return members, err
}

// Page operations

func (s *PostgresStore) CreatePage(ctx context.Context, page *models.Page) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if page.SortOrder == 0 {
			next, err := nextSortOrder(tx, page.WorkspaceID, page.ParentPageID)
			if err != nil {
				return err
			}
			page.SortOrder = next
		}
		return tx.Create(page).Error
	})
}

// nextSortOrder places a new page after the last of its siblings.
func nextSortOrder(tx *gorm.DB, workspaceID models.WorkspaceID, parentID *models.PageID) (int, error) {
	q := tx.Model(&models.Page{}).Where("workspace_id = ?", workspaceID)
	if parentID == nil {
		q = q.Where("parent_page_id IS NULL")
	} else {
		q = q.Where("parent_page_id = ?", *parentID)
	}
	var max *int
	if err := q.Select("MAX(sort_order)").Scan(&max).Error; err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max + 1, nil
}

func (s *PostgresStore) GetPage(ctx context.Context, id models.PageID) (*models.Page, error) {
	var page models.Page
	err := s.db.WithContext(ctx).First(&page, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &page, nil
}

func (s *PostgresStore) UpdatePage(ctx context.Context, page *models.Page) error {
	return s.db.WithContext(ctx).Save(page).Error
}

func (s *PostgresStore) DeletePage(ctx context.Context, id models.PageID) error {
	return s.db.WithContext(ctx).Delete(&models.Page{}, "id = ?", id).Error
}

func (s *PostgresStore) ListPages(ctx context.Context, workspaceID models.WorkspaceID) ([]*models.Page, error) {
	var pages []*models.Page
	err := s.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("parent_page_id NULLS FIRST, sort_order, created_at").
		Find(&pages).Error
	return pages, err
}

func (s *PostgresStore) ListChildPages(ctx context.Context, parentPageID models.PageID) ([]*models.Page, error) {
	var pages []*models.Page
	err := s.db.WithContext(ctx).
		Where("parent_page_id = ?", parentPageID).
		Order("sort_order, created_at").
		Find(&pages).Error
	return pages, err
}

// ReorderPages applies a batch of page moves atomically. The whole batch is
// validated against the live page set before the first UPDATE, and any
// failure rolls the transaction back.
func (s *PostgresStore) ReorderPages(ctx context.Context, workspaceID models.WorkspaceID, moves []models.PageReorder) error {
	if len(moves) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pages []*models.Page
		if err := tx.Where("workspace_id = ?", workspaceID).Find(&pages).Error; err != nil {
			return err
		}
		parents := make(map[models.PageID]*models.PageID, len(pages))
		for _, p := range pages {
			parents[p.ID] = p.ParentPageID
		}
		for _, mv := range moves {
			if _, ok := parents[mv.PageID]; !ok {
				return missingPageErr(tx, mv.PageID, workspaceID, "page")
			}
			if mv.ParentPageID != nil {
				if _, ok := parents[*mv.ParentPageID]; !ok {
					return missingPageErr(tx, *mv.ParentPageID, workspaceID, "parent page")
				}
			}
		}
		for _, mv := range moves {
			parents[mv.PageID] = mv.ParentPageID
		}
		for _, mv := range moves {
			if hasCycle(parents, mv.PageID) {
				return store.ErrCycle
			}
		}

		for _, mv := range moves {
			updates := map[string]any{
				"parent_page_id": mv.ParentPageID,
				"sort_order":     mv.SortOrder,
			}
			if err := tx.Model(&models.Page{}).Where("id = ?", mv.PageID).Updates(updates).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// missingPageErr distinguishes a page that does not exist at all, which is
// NotFound, from a live page sitting in another workspace, which is a
// validation failure.
func missingPageErr(tx *gorm.DB, pageID models.PageID, workspaceID models.WorkspaceID, what string) error {
	var count int64
	if err := tx.Model(&models.Page{}).Where("id = ?", pageID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: %s %s", store.ErrNotFound, what, pageID)
	}
	return fmt.Errorf("%w: %s %s not in workspace %s", store.ErrValidation, what, pageID, workspaceID)
}

// hasCycle walks the ancestor chain of start in the prospective tree and
// reports whether it loops back to start.
func hasCycle(parents map[models.PageID]*models.PageID, start models.PageID) bool {
	cur := parents[start]
	for steps := 0; cur != nil && steps <= len(parents); steps++ {
		if *cur == start {
			return true
		}
		cur = parents[*cur]
	}
	return false
}

// Block operations

// CreateBlock checks per-page client ID uniqueness inside the insert
// transaction; the partial unique index on (page_id, client_id) backstops
// the check against a concurrent insert.
func (s *PostgresStore) CreateBlock(ctx context.Context, block *models.Block) error {
	if block.ClientID == "" {
		return fmt.Errorf("%w: block client ID is required", store.ErrValidation)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&models.Block{}).
			Where("page_id = ? AND client_id = ?", block.PageID, block.ClientID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: client ID %q already exists on page %s", store.ErrValidation, block.ClientID, block.PageID)
		}
		return tx.Create(block).Error
	})
}

func (s *PostgresStore) GetBlock(ctx context.Context, id models.BlockID) (*models.Block, error) {
	var block models.Block
	err := s.db.WithContext(ctx).First(&block, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &block, nil
}

func (s *PostgresStore) GetBlockByClientID(ctx context.Context, pageID models.PageID, clientID string) (*models.Block, error) {
	var block models.Block
	err := s.db.WithContext(ctx).
		Where("page_id = ? AND client_id = ?", pageID, clientID).
		First(&block).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &block, nil
}

func (s *PostgresStore) UpdateBlock(ctx context.Context, block *models.Block) error {
	return s.db.WithContext(ctx).Save(block).Error
}

func (s *PostgresStore) DeleteBlock(ctx context.Context, id models.BlockID) error {
	return s.db.WithContext(ctx).Delete(&models.Block{}, "id = ?", id).Error
}

func (s *PostgresStore) ListBlocks(ctx context.Context, pageID models.PageID) ([]*models.Block, error) {
	var blocks []*models.Block
	err := s.db.WithContext(ctx).
		Where("page_id = ?", pageID).
		Order("position").
		Find(&blocks).Error
	return blocks, err
}

// ReconcileBlocks diffs the client's block list against the stored one by
// client ID inside a single transaction. Locking the page row first
// serializes concurrent reconciles of the same page, which keeps the
// last-writer-wins outcome a consistent snapshot of one request rather
// than an interleaving of two.
func (s *PostgresStore) ReconcileBlocks(ctx context.Context, pageID models.PageID, inputs []models.BlockInput) (*store.ReconcileResult, error) {
	result := &store.ReconcileResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var page models.Page
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&page, "id = ?", pageID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: page %s", store.ErrNotFound, pageID)
			}
			return err
		}

		var existing []*models.Block
		if err := tx.Where("page_id = ?", pageID).Find(&existing).Error; err != nil {
			return err
		}

		// An empty list means the editor had nothing to say, not that
		// every block should be deleted.
		if len(inputs) == 0 {
			sortByPosition(existing)
			result.Blocks = existing
			return nil
		}

		ordered, err := orderInputs(inputs)
		if err != nil {
			return err
		}

		byClientID := make(map[string]*models.Block, len(existing))
		for _, b := range existing {
			byClientID[b.ClientID] = b
		}

		keep := make(map[string]bool, len(ordered))
		for pos, in := range ordered {
			keep[in.ClientID] = true
			if b, ok := byClientID[in.ClientID]; ok {
				if !blockChanged(b, in, pos) {
					continue
				}
				b.ParentBlockID = in.ParentBlockID
				b.Type = in.Type
				b.Content = in.Content
				b.Properties = in.Properties
				b.Position = pos
				if err := tx.Save(b).Error; err != nil {
					return err
				}
				result.Updated++
				continue
			}
			nb := &models.Block{
				PageID:        pageID,
				ParentBlockID: in.ParentBlockID,
				ClientID:      in.ClientID,
				Type:          in.Type,
				Content:       in.Content,
				Properties:    in.Properties,
				Position:      pos,
			}
			if err := tx.Create(nb).Error; err != nil {
				return err
			}
			result.Created++
		}

		for clientID, b := range byClientID {
			if keep[clientID] {
				continue
			}
			if err := tx.Delete(b).Error; err != nil {
				return err
			}
			result.Deleted++
		}

		var after []*models.Block
		if err := tx.Where("page_id = ?", pageID).Order("position").Find(&after).Error; err != nil {
			return err
		}
		result.Blocks = after
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func sortByPosition(blocks []*models.Block) {
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Position < blocks[j].Position })
}

// orderInputs validates client IDs and returns the inputs sorted stably by
// requested position; the sorted index becomes the dense position.
func orderInputs(inputs []models.BlockInput) ([]models.BlockInput, error) {
	seen := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		if in.ClientID == "" {
			return nil, fmt.Errorf("%w: block client ID is required", store.ErrValidation)
		}
		if seen[in.ClientID] {
			return nil, fmt.Errorf("%w: duplicate client ID %q", store.ErrValidation, in.ClientID)
		}
		seen[in.ClientID] = true
	}
	ordered := make([]models.BlockInput, len(inputs))
	copy(ordered, inputs)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })
	return ordered, nil
}

func blockChanged(b *models.Block, in models.BlockInput, pos int) bool {
	return b.Type != in.Type ||
		b.Position != pos ||
		!sameBlockParent(b.ParentBlockID, in.ParentBlockID) ||
		!reflect.DeepEqual(map[string]any(b.Content), map[string]any(in.Content)) ||
		!reflect.DeepEqual(map[string]any(b.Properties), map[string]any(in.Properties))
}

func sameBlockParent(a, b *models.BlockID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Permission operations

func (s *PostgresStore) CreatePermission(ctx context.Context, permission *models.Permission) error {
	return s.db.WithContext(ctx).Create(permission).Error
}

func (s *PostgresStore) GetPermissions(ctx context.Context, resourceType models.ResourceType, resourceID models.ResourceID) ([]*models.Permission, error) {
	var permissions []*models.Permission
	err := s.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Find(&permissions).Error
	return permissions, err
}

func (s *PostgresStore) GetUserPermissions(ctx context.Context, userID models.UserID) ([]*models.Permission, error) {
	var permissions []*models.Permission
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&permissions).Error
	return permissions, err
}

func (s *PostgresStore) UpdatePermission(ctx context.Context, permission *models.Permission) error {
	return s.db.WithContext(ctx).Save(permission).Error
}

func (s *PostgresStore) DeletePermission(ctx context.Context, id models.PermissionID) error {
	return s.db.WithContext(ctx).Delete(&models.Permission{}, "id = ?", id).Error
}

func (s *PostgresStore) CheckPermission(ctx context.Context, userID models.UserID, resourceType models.ResourceType, resourceID models.ResourceID, level models.PermissionLevel) (bool, error) {
	levels := coveringLevels(level)
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Permission{}).
		Where("user_id = ? AND resource_type = ? AND resource_id = ? AND permission_level IN ?",
			userID, resourceType, resourceID, levels).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// coveringLevels returns the permission levels that satisfy a requirement,
// e.g. write access is satisfied by write or admin.
func coveringLevels(level models.PermissionLevel) []models.PermissionLevel {
	switch level {
	case models.PermissionRead:
		return []models.PermissionLevel{models.PermissionRead, models.PermissionWrite, models.PermissionAdmin}
	case models.PermissionWrite:
		return []models.PermissionLevel{models.PermissionWrite, models.PermissionAdmin}
	default:
		return []models.PermissionLevel{models.PermissionAdmin}
	}
}
