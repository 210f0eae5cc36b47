// Package surrealdb implements the store.Store interface on SurrealDB.
//
// The models are used directly: typed IDs marshal to RecordIDs via their
// MarshalCBOR methods, so no translation layer sits between application
// structs and the database. Foreign keys are stored as RecordIDs and
// queried with parameterized WHERE clauses.
//
// SurrealDB executes a whole Query RPC atomically when wrapped in BEGIN
// TRANSACTION / COMMIT TRANSACTION, which is how ReconcileBlocks and
// ReorderPages get the same all-or-nothing behavior as the PostgreSQL
// backend: the diff is computed in Go, then applied as one transactional
// query.
package surrealdb

import (
	"context"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strings"
	"time"

	surrealdb "github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"github.com/notehub-io/notehub/pkg/models"
	"github.com/notehub-io/notehub/pkg/store"
)

// SurrealStore implements the Store interface using SurrealDB over its
// WebSocket RPC with the surrealcbor codec. The codec matters: without it,
// time.Time and RecordID values are marshaled in a shape SurrealDB rejects.
type SurrealStore struct {
	db       *surrealdb.DB
	ns       string
	database string
}

var _ store.Store = (*SurrealStore)(nil)

// NewSurrealStore connects to SurrealDB and selects the given namespace
// and database.
func NewSurrealStore(wsURL, namespace, database, username, password string) (*SurrealStore, error) {
	ctx := context.Background()

	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	conf := connection.NewConfig(u)
	codec := surrealcbor.New()
	conf.Marshaler = codec
	conf.Unmarshaler = codec

	conn := gorillaws.New(conf)
	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if username != "" && password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": username,
			"pass": password,
		}); err != nil {
			return nil, fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := db.Use(ctx, namespace, database); err != nil {
		return nil, fmt.Errorf("failed to use namespace/database: %w", err)
	}

	return &SurrealStore{db: db, ns: namespace, database: database}, nil
}

// Migrate is a no-op: SurrealDB creates tables implicitly on first insert.
func (s *SurrealStore) Migrate(ctx context.Context) error {
	return nil
}

// Close closes the database connection
func (s *SurrealStore) Close() error {
	return s.db.Close(context.Background())
}

// handleNotFound maps the driver's "no result" errors to nil so Get
// lookups can return (nil, nil) for missing records.
func handleNotFound(err error) error {
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "Expected a single or multiple results but got 0") ||
			strings.Contains(errStr, "cannot unmarshal array into Go value") {
			return nil
		}
	}
	return err
}

func touch(createdAt, updatedAt *time.Time) {
	if createdAt.IsZero() {
		*createdAt = time.Now()
	}
	if updatedAt.IsZero() {
		*updatedAt = time.Now()
	}
}

// queryList runs a parameterized SELECT and returns the first statement's
// rows.
func queryList[T any](ctx context.Context, s *SurrealStore, query string, params map[string]any) ([]*T, error) {
	result, err := surrealdb.Query[[]*T](ctx, s.db, query, params)
	if err != nil {
		return nil, err
	}
	if result == nil || len(*result) == 0 {
		return nil, nil
	}
	return (*result)[0].Result, nil
}

// queryOne runs a parameterized SELECT expected to match at most one row.
func queryOne[T any](ctx context.Context, s *SurrealStore, query string, params map[string]any) (*T, error) {
	rows, err := queryList[T](ctx, s, query, params)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// User operations

func (s *SurrealStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = models.NewUserID()
	}
	touch(&user.CreatedAt, &user.UpdatedAt)
	_, err := surrealdb.Create[models.User](ctx, s.db, "users", user)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *SurrealStore) GetUser(ctx context.Context, id models.UserID) (*models.User, error) {
	user, err := surrealdb.Select[models.User](ctx, s.db, id.RecordID())
	if err != nil {
		if handleNotFound(err) == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *SurrealStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return queryOne[models.User](ctx, s, "SELECT * FROM users WHERE email = $email", map[string]any{
		"email": email,
	})
}

func (s *SurrealStore) UpdateUser(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()
	_, err := surrealdb.Update[models.User](ctx, s.db, user.ID.RecordID(), user)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (s *SurrealStore) DeleteUser(ctx context.Context, id models.UserID) error {
	_, err := surrealdb.Delete[models.User](ctx, s.db, id.RecordID())
	return err
}

// Workspace operations

func (s *SurrealStore) CreateWorkspace(ctx context.Context, workspace *models.Workspace) error {
	if workspace.ID.IsZero() {
		workspace.ID = models.NewWorkspaceID()
	}
	touch(&workspace.CreatedAt, &workspace.UpdatedAt)
	_, err := surrealdb.Create[models.Workspace](ctx, s.db, "workspaces", workspace)
	if err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}

	member := &models.WorkspaceMember{
		ID:          models.NewMembershipID(),
		WorkspaceID: workspace.ID,
		UserID:      workspace.OwnerID,
		Role:        models.RoleOwner,
		CreatedAt:   workspace.CreatedAt,
		UpdatedAt:   workspace.CreatedAt,
	}
	if _, err := surrealdb.Create[models.WorkspaceMember](ctx, s.db, "workspace_members", member); err != nil {
		return fmt.Errorf("failed to create owner membership: %w", err)
	}
	return nil
}

func (s *SurrealStore) GetWorkspace(ctx context.Context, id models.WorkspaceID) (*models.Workspace, error) {
	workspace, err := surrealdb.Select[models.Workspace](ctx, s.db, id.RecordID())
	if err != nil {
		if handleNotFound(err) == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	return workspace, nil
}

func (s *SurrealStore) UpdateWorkspace(ctx context.Context, workspace *models.Workspace) error {
	workspace.UpdatedAt = time.Now()
	_, err := surrealdb.Update[models.Workspace](ctx, s.db, workspace.ID.RecordID(), workspace)
	if err != nil {
		return fmt.Errorf("failed to update workspace: %w", err)
	}
	return nil
}

// DeleteWorkspace removes the workspace and cascades to its pages and
// their blocks in one transactional query.
func (s *SurrealStore) DeleteWorkspace(ctx context.Context, id models.WorkspaceID) error {
	query := `BEGIN TRANSACTION;
DELETE blocks WHERE page_id IN (SELECT VALUE id FROM pages WHERE workspace_id = $workspace);
DELETE pages WHERE workspace_id = $workspace;
DELETE $workspace;
COMMIT TRANSACTION;`
	_, err := surrealdb.Query[any](ctx, s.db, query, map[string]any{
		"workspace": id.RecordID(),
	})
	if err != nil {
		return fmt.Errorf("failed to delete workspace: %w", err)
	}
	return nil
}

func (s *SurrealStore) ListWorkspaces(ctx context.Context, userID models.UserID) ([]*models.Workspace, error) {
	members, err := queryList[models.WorkspaceMember](ctx, s,
		"SELECT * FROM workspace_members WHERE user_id = $user", map[string]any{
			"user": userID.RecordID(),
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}

	var workspaces []*models.Workspace
	for _, m := range members {
		w, err := s.GetWorkspace(ctx, m.WorkspaceID)
		if err != nil {
			return nil, err
		}
		if w != nil {
			workspaces = append(workspaces, w)
		}
	}
	sort.Slice(workspaces, func(i, j int) bool {
		return workspaces[i].CreatedAt.Before(workspaces[j].CreatedAt)
	})
	return workspaces, nil
}

// Membership operations

func (s *SurrealStore) AddMember(ctx context.Context, member *models.WorkspaceMember) error {
	existing, err := s.GetMember(ctx, member.WorkspaceID, member.UserID)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: user %s is already a member", store.ErrValidation, member.UserID)
	}
	if member.ID.IsZero() {
		member.ID = models.NewMembershipID()
	}
	touch(&member.CreatedAt, &member.UpdatedAt)
	if _, err := surrealdb.Create[models.WorkspaceMember](ctx, s.db, "workspace_members", member); err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

func (s *SurrealStore) GetMember(ctx context.Context, workspaceID models.WorkspaceID, userID models.UserID) (*models.WorkspaceMember, error) {
	return queryOne[models.WorkspaceMember](ctx, s,
		"SELECT * FROM workspace_members WHERE workspace_id = $workspace AND user_id = $user",
		map[string]any{
			"workspace": workspaceID.RecordID(),
			"user":      userID.RecordID(),
		})
}

func (s *SurrealStore) UpdateMember(ctx context.Context, member *models.WorkspaceMember) error {
	member.UpdatedAt = time.Now()
	_, err := surrealdb.Update[models.WorkspaceMember](ctx, s.db, member.ID.RecordID(), member)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}
	return nil
}

func (s *SurrealStore) RemoveMember(ctx context.Context, workspaceID models.WorkspaceID, userID models.UserID) error {
	_, err := surrealdb.Query[any](ctx, s.db,
		"DELETE workspace_members WHERE workspace_id = $workspace AND user_id = $user",
		map[string]any{
			"workspace": workspaceID.RecordID(),
			"user":      userID.RecordID(),
		})
	return err
}

func (s *SurrealStore) ListMembers(ctx context.Context, workspaceID models.WorkspaceID) ([]*models.WorkspaceMember, error) {
	return queryList[models.WorkspaceMember](ctx, s,
		"SELECT * FROM workspace_members WHERE workspace_id = $workspace ORDER BY created_at",
		map[string]any{
			"workspace": workspaceID.RecordID(),
		})
}

// Page operations

func (s *SurrealStore) CreatePage(ctx context.Context, page *models.Page) error {
	if page.ID.IsZero() {
		page.ID = models.NewPageID()
	}
	touch(&page.CreatedAt, &page.UpdatedAt)
	if page.SortOrder == 0 {
		siblings, err := s.siblingPages(ctx, page.WorkspaceID, page.ParentPageID)
		if err != nil {
			return err
		}
		for _, sib := range siblings {
			if sib.SortOrder >= page.SortOrder {
				page.SortOrder = sib.SortOrder + 1
			}
		}
	}
	if _, err := surrealdb.Create[models.Page](ctx, s.db, "pages", page); err != nil {
		return fmt.Errorf("failed to create page: %w", err)
	}
	return nil
}

func (s *SurrealStore) siblingPages(ctx context.Context, workspaceID models.WorkspaceID, parentID *models.PageID) ([]*models.Page, error) {
	if parentID == nil {
		return queryList[models.Page](ctx, s,
			"SELECT * FROM pages WHERE workspace_id = $workspace AND parent_page_id = NONE",
			map[string]any{"workspace": workspaceID.RecordID()})
	}
	return queryList[models.Page](ctx, s,
		"SELECT * FROM pages WHERE workspace_id = $workspace AND parent_page_id = $parent",
		map[string]any{
			"workspace": workspaceID.RecordID(),
			"parent":    parentID.RecordID(),
		})
}

func (s *SurrealStore) GetPage(ctx context.Context, id models.PageID) (*models.Page, error) {
	page, err := surrealdb.Select[models.Page](ctx, s.db, id.RecordID())
	if err != nil {
		if handleNotFound(err) == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	return page, nil
}

func (s *SurrealStore) UpdatePage(ctx context.Context, page *models.Page) error {
	page.UpdatedAt = time.Now()
	_, err := surrealdb.Update[models.Page](ctx, s.db, page.ID.RecordID(), page)
	if err != nil {
		return fmt.Errorf("failed to update page: %w", err)
	}
	return nil
}

func (s *SurrealStore) DeletePage(ctx context.Context, id models.PageID) error {
	_, err := surrealdb.Delete[models.Page](ctx, s.db, id.RecordID())
	return err
}

func (s *SurrealStore) ListPages(ctx context.Context, workspaceID models.WorkspaceID) ([]*models.Page, error) {
	return queryList[models.Page](ctx, s,
		"SELECT * FROM pages WHERE workspace_id = $workspace ORDER BY sort_order",
		map[string]any{"workspace": workspaceID.RecordID()})
}

func (s *SurrealStore) ListChildPages(ctx context.Context, parentPageID models.PageID) ([]*models.Page, error) {
	return queryList[models.Page](ctx, s,
		"SELECT * FROM pages WHERE parent_page_id = $parent ORDER BY sort_order",
		map[string]any{"parent": parentPageID.RecordID()})
}

// ReorderPages validates the batch in Go against a snapshot of the
// workspace's pages, then applies every move in one transactional query.
func (s *SurrealStore) ReorderPages(ctx context.Context, workspaceID models.WorkspaceID, moves []models.PageReorder) error {
	if len(moves) == 0 {
		return nil
	}

	pages, err := s.ListPages(ctx, workspaceID)
	if err != nil {
		return err
	}
	parents := make(map[models.PageID]*models.PageID, len(pages))
	for _, p := range pages {
		parents[p.ID] = p.ParentPageID
	}
	for _, mv := range moves {
		if _, ok := parents[mv.PageID]; !ok {
			return s.missingPageErr(ctx, mv.PageID, workspaceID, "page")
		}
		if mv.ParentPageID != nil {
			if _, ok := parents[*mv.ParentPageID]; !ok {
				return s.missingPageErr(ctx, *mv.ParentPageID, workspaceID, "parent page")
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

	var sb strings.Builder
	params := map[string]any{"ts": time.Now()}
	sb.WriteString("BEGIN TRANSACTION;\n")
	for i, mv := range moves {
		page := fmt.Sprintf("page_%d", i)
		parent := fmt.Sprintf("parent_%d", i)
		order := fmt.Sprintf("order_%d", i)
		fmt.Fprintf(&sb, "UPDATE $%s SET parent_page_id = $%s, sort_order = $%s, updated_at = $ts;\n",
			page, parent, order)
		params[page] = mv.PageID.RecordID()
		if mv.ParentPageID != nil {
			params[parent] = mv.ParentPageID.RecordID()
		} else {
			params[parent] = nil
		}
		params[order] = mv.SortOrder
	}
	sb.WriteString("COMMIT TRANSACTION;")

	if _, err := surrealdb.Query[any](ctx, s.db, sb.String(), params); err != nil {
		return fmt.Errorf("failed to reorder pages: %w", err)
	}
	return nil
}

// missingPageErr distinguishes a page that does not exist at all, which is
// NotFound, from a live page in another workspace, which is a validation
// failure.
func (s *SurrealStore) missingPageErr(ctx context.Context, pageID models.PageID, workspaceID models.WorkspaceID, what string) error {
	page, err := s.GetPage(ctx, pageID)
	if err != nil {
		return err
	}
	if page == nil {
		return fmt.Errorf("%w: %s %s", store.ErrNotFound, what, pageID)
	}
	return fmt.Errorf("%w: %s %s not in workspace %s", store.ErrValidation, what, pageID, workspaceID)
}

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

func (s *SurrealStore) CreateBlock(ctx context.Context, block *models.Block) error {
	if block.ClientID == "" {
		return fmt.Errorf("%w: block client ID is required", store.ErrValidation)
	}
	existing, err := s.GetBlockByClientID(ctx, block.PageID, block.ClientID)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("%w: client ID %q already exists on page %s", store.ErrValidation, block.ClientID, block.PageID)
	}
	if block.ID.IsZero() {
		block.ID = models.NewBlockID()
	}
	touch(&block.CreatedAt, &block.UpdatedAt)
	if _, err := surrealdb.Create[models.Block](ctx, s.db, "blocks", block); err != nil {
		return fmt.Errorf("failed to create block: %w", err)
	}
	return nil
}

func (s *SurrealStore) GetBlock(ctx context.Context, id models.BlockID) (*models.Block, error) {
	block, err := surrealdb.Select[models.Block](ctx, s.db, id.RecordID())
	if err != nil {
		if handleNotFound(err) == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get block: %w", err)
	}
	return block, nil
}

func (s *SurrealStore) GetBlockByClientID(ctx context.Context, pageID models.PageID, clientID string) (*models.Block, error) {
	return queryOne[models.Block](ctx, s,
		"SELECT * FROM blocks WHERE page_id = $page AND client_id = $client",
		map[string]any{
			"page":   pageID.RecordID(),
			"client": clientID,
		})
}

func (s *SurrealStore) UpdateBlock(ctx context.Context, block *models.Block) error {
	block.UpdatedAt = time.Now()
	_, err := surrealdb.Update[models.Block](ctx, s.db, block.ID.RecordID(), block)
	if err != nil {
		return fmt.Errorf("failed to update block: %w", err)
	}
	return nil
}

func (s *SurrealStore) DeleteBlock(ctx context.Context, id models.BlockID) error {
	_, err := surrealdb.Delete[models.Block](ctx, s.db, id.RecordID())
	return err
}

func (s *SurrealStore) ListBlocks(ctx context.Context, pageID models.PageID) ([]*models.Block, error) {
	return queryList[models.Block](ctx, s,
		"SELECT * FROM blocks WHERE page_id = $page ORDER BY position",
		map[string]any{"page": pageID.RecordID()})
}

// ReconcileBlocks computes the diff in Go from a snapshot of the page's
// blocks, then applies all creates, updates, and deletes in one
// transactional query so the page never exposes a half-applied list.
func (s *SurrealStore) ReconcileBlocks(ctx context.Context, pageID models.PageID, inputs []models.BlockInput) (*store.ReconcileResult, error) {
	page, err := s.GetPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, fmt.Errorf("%w: page %s", store.ErrNotFound, pageID)
	}

	existing, err := s.ListBlocks(ctx, pageID)
	if err != nil {
		return nil, err
	}

	// An empty list means the editor had nothing to say, not that every
	// block should be deleted.
	if len(inputs) == 0 {
		return &store.ReconcileResult{Blocks: existing}, nil
	}

	ordered, err := orderInputs(inputs)
	if err != nil {
		return nil, err
	}

	byClientID := make(map[string]*models.Block, len(existing))
	for _, b := range existing {
		byClientID[b.ClientID] = b
	}

	result := &store.ReconcileResult{}
	ts := time.Now()

	var sb strings.Builder
	params := map[string]any{"ts": ts}
	stmt := 0
	sb.WriteString("BEGIN TRANSACTION;\n")

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
			b.UpdatedAt = ts
			name := fmt.Sprintf("u_%d", stmt)
			fmt.Fprintf(&sb, "UPDATE $%s_id CONTENT $%s;\n", name, name)
			params[name+"_id"] = b.ID.RecordID()
			params[name] = b
			stmt++
			result.Updated++
			continue
		}
		nb := &models.Block{
			ID:            models.NewBlockID(),
			PageID:        pageID,
			ParentBlockID: in.ParentBlockID,
			ClientID:      in.ClientID,
			Type:          in.Type,
			Content:       in.Content,
			Properties:    in.Properties,
			Position:      pos,
			CreatedAt:     ts,
			UpdatedAt:     ts,
		}
		name := fmt.Sprintf("c_%d", stmt)
		fmt.Fprintf(&sb, "CREATE $%s_id CONTENT $%s;\n", name, name)
		params[name+"_id"] = nb.ID.RecordID()
		params[name] = nb
		stmt++
		result.Created++
	}

	for clientID, b := range byClientID {
		if keep[clientID] {
			continue
		}
		name := fmt.Sprintf("d_%d", stmt)
		fmt.Fprintf(&sb, "DELETE $%s;\n", name)
		params[name] = b.ID.RecordID()
		stmt++
		result.Deleted++
	}
	sb.WriteString("COMMIT TRANSACTION;")

	if stmt > 0 {
		if _, err := surrealdb.Query[any](ctx, s.db, sb.String(), params); err != nil {
			return nil, fmt.Errorf("failed to reconcile blocks: %w", err)
		}
	}

	after, err := s.ListBlocks(ctx, pageID)
	if err != nil {
		return nil, err
	}
	result.Blocks = after
	return result, nil
}

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

func (s *SurrealStore) CreatePermission(ctx context.Context, permission *models.Permission) error {
	if permission.ID.IsZero() {
		permission.ID = models.NewPermissionID()
	}
	permission.ResourceID.SetTableForResourceType(permission.ResourceType)
	touch(&permission.CreatedAt, &permission.UpdatedAt)
	if _, err := surrealdb.Create[models.Permission](ctx, s.db, "permissions", permission); err != nil {
		return fmt.Errorf("failed to create permission: %w", err)
	}
	return nil
}

func (s *SurrealStore) GetPermissions(ctx context.Context, resourceType models.ResourceType, resourceID models.ResourceID) ([]*models.Permission, error) {
	return queryList[models.Permission](ctx, s,
		"SELECT * FROM permissions WHERE resource_type = $type AND resource_id = $resource",
		map[string]any{
			"type":     string(resourceType),
			"resource": resourceID.RecordID(),
		})
}

func (s *SurrealStore) GetUserPermissions(ctx context.Context, userID models.UserID) ([]*models.Permission, error) {
	return queryList[models.Permission](ctx, s,
		"SELECT * FROM permissions WHERE user_id = $user",
		map[string]any{"user": userID.RecordID()})
}

func (s *SurrealStore) UpdatePermission(ctx context.Context, permission *models.Permission) error {
	permission.UpdatedAt = time.Now()
	_, err := surrealdb.Update[models.Permission](ctx, s.db, permission.ID.RecordID(), permission)
	if err != nil {
		return fmt.Errorf("failed to update permission: %w", err)
	}
	return nil
}

func (s *SurrealStore) DeletePermission(ctx context.Context, id models.PermissionID) error {
	_, err := surrealdb.Delete[models.Permission](ctx, s.db, id.RecordID())
	return err
}

func (s *SurrealStore) CheckPermission(ctx context.Context, userID models.UserID, resourceType models.ResourceType, resourceID models.ResourceID, level models.PermissionLevel) (bool, error) {
	permissions, err := s.GetPermissions(ctx, resourceType, resourceID)
	if err != nil {
		return false, err
	}
	for _, p := range permissions {
		if p.UserID != userID {
			continue
		}
		if permissionCovers(p.PermissionLevel, level) {
			return true, nil
		}
	}
	return false, nil
}

func permissionCovers(have, want models.PermissionLevel) bool {
	rank := map[models.PermissionLevel]int{
		models.PermissionRead:  1,
		models.PermissionWrite: 2,
		models.PermissionAdmin: 3,
	}
	return rank[have] >= rank[want]
}
