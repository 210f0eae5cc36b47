// Package memory provides an in-memory Store backend. It backs handler and
// client tests and is handy for single-process demos; it mirrors the
// reconcile and reorder semantics of the database backends exactly, so it
// doubles as the reference implementation for both.
package memory

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/notehub-io/notehub/pkg/models"
	"github.com/notehub-io/notehub/pkg/store"
)

// MemoryStore implements store.Store with mutex-guarded maps. All returned
// records are copies; mutating them does not affect stored state.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[models.UserID]*models.User
	workspaces  map[models.WorkspaceID]*models.Workspace
	members     map[models.MembershipID]*models.WorkspaceMember
	pages       map[models.PageID]*models.Page
	blocks      map[models.BlockID]*models.Block
	permissions map[models.PermissionID]*models.Permission
}

var _ store.Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[models.UserID]*models.User),
		workspaces:  make(map[models.WorkspaceID]*models.Workspace),
		members:     make(map[models.MembershipID]*models.WorkspaceMember),
		pages:       make(map[models.PageID]*models.Page),
		blocks:      make(map[models.BlockID]*models.Block),
		permissions: make(map[models.PermissionID]*models.Permission),
	}
}

func deleted(d gorm.DeletedAt) bool { return d.Valid }

func now() time.Time { return time.Now().UTC() }

func softDelete() gorm.DeletedAt {
	return gorm.DeletedAt{Time: now(), Valid: true}
}

// User operations

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID.IsZero() {
		user.ID = models.NewUserID()
	}
	for _, u := range s.users {
		if !deleted(u.DeletedAt) && u.Email == user.Email {
			return fmt.Errorf("%w: email %s already registered", store.ErrValidation, user.Email)
		}
	}
	user.CreatedAt = now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id models.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok || deleted(u.DeletedAt) {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if !deleted(u.DeletedAt) && u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) UpdateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok || deleted(existing.DeletedAt) {
		return fmt.Errorf("%w: user %s", store.ErrNotFound, user.ID)
	}
	user.CreatedAt = existing.CreatedAt
	user.UpdatedAt = now()
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteUser(ctx context.Context, id models.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[id]; ok && !deleted(u.DeletedAt) {
		u.DeletedAt = softDelete()
	}
	return nil
}

// Workspace operations

func (s *MemoryStore) CreateWorkspace(ctx context.Context, workspace *models.Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if workspace.ID.IsZero() {
		workspace.ID = models.NewWorkspaceID()
	}
	workspace.CreatedAt = now()
	workspace.UpdatedAt = workspace.CreatedAt
	cp := *workspace
	s.workspaces[workspace.ID] = &cp

	// The creator is always the owner member.
	member := &models.WorkspaceMember{
		ID:          models.NewMembershipID(),
		WorkspaceID: workspace.ID,
		UserID:      workspace.OwnerID,
		Role:        models.RoleOwner,
		CreatedAt:   workspace.CreatedAt,
		UpdatedAt:   workspace.CreatedAt,
	}
	s.members[member.ID] = member
	return nil
}

func (s *MemoryStore) GetWorkspace(ctx context.Context, id models.WorkspaceID) (*models.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.workspaces[id]
	if !ok || deleted(w.DeletedAt) {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (s *MemoryStore) UpdateWorkspace(ctx context.Context, workspace *models.Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.workspaces[workspace.ID]
	if !ok || deleted(existing.DeletedAt) {
		return fmt.Errorf("%w: workspace %s", store.ErrNotFound, workspace.ID)
	}
	workspace.CreatedAt = existing.CreatedAt
	workspace.UpdatedAt = now()
	cp := *workspace
	s.workspaces[workspace.ID] = &cp
	return nil
}

// DeleteWorkspace soft-deletes the workspace and cascades to its pages and
// their blocks, so nothing inside a deleted workspace stays reachable.
func (s *MemoryStore) DeleteWorkspace(ctx context.Context, id models.WorkspaceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.workspaces[id]
	if !ok || deleted(w.DeletedAt) {
		return nil
	}
	ts := softDelete()
	w.DeletedAt = ts

	doomed := make(map[models.PageID]bool)
	for pid, p := range s.pages {
		if !deleted(p.DeletedAt) && p.WorkspaceID == id {
			p.DeletedAt = ts
			doomed[pid] = true
		}
	}
	for _, b := range s.blocks {
		if !deleted(b.DeletedAt) && doomed[b.PageID] {
			b.DeletedAt = ts
		}
	}
	return nil
}

func (s *MemoryStore) ListWorkspaces(ctx context.Context, userID models.UserID) ([]*models.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Workspace
	for _, m := range s.members {
		if m.UserID != userID {
			continue
		}
		w, ok := s.workspaces[m.WorkspaceID]
		if !ok || deleted(w.DeletedAt) {
			continue
		}
		cp := *w
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Membership operations

func (s *MemoryStore) AddMember(ctx context.Context, member *models.WorkspaceMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.members {
		if m.WorkspaceID == member.WorkspaceID && m.UserID == member.UserID {
			return fmt.Errorf("%w: user %s is already a member", store.ErrValidation, member.UserID)
		}
	}
	if member.ID.IsZero() {
		member.ID = models.NewMembershipID()
	}
	member.CreatedAt = now()
	member.UpdatedAt = member.CreatedAt
	cp := *member
	s.members[member.ID] = &cp
	return nil
}

func (s *MemoryStore) GetMember(ctx context.Context, workspaceID models.WorkspaceID, userID models.UserID) (*models.WorkspaceMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.members {
		if m.WorkspaceID == workspaceID && m.UserID == userID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) UpdateMember(ctx context.Context, member *models.WorkspaceMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.members[member.ID]
	if !ok {
		return fmt.Errorf("%w: membership %s", store.ErrNotFound, member.ID)
	}
	member.CreatedAt = existing.CreatedAt
	member.UpdatedAt = now()
	cp := *member
	s.members[member.ID] = &cp
	return nil
}

func (s *MemoryStore) RemoveMember(ctx context.Context, workspaceID models.WorkspaceID, userID models.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, m := range s.members {
		if m.WorkspaceID == workspaceID && m.UserID == userID {
			delete(s.members, id)
		}
	}
	return nil
}

func (s *MemoryStore) ListMembers(ctx context.Context, workspaceID models.WorkspaceID) ([]*models.WorkspaceMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.WorkspaceMember
	for _, m := range s.members {
		if m.WorkspaceID == workspaceID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Page operations

func (s *MemoryStore) CreatePage(ctx context.Context, page *models.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if page.ID.IsZero() {
		page.ID = models.NewPageID()
	}
	if page.SortOrder == 0 {
		page.SortOrder = s.nextSortOrderLocked(page.WorkspaceID, page.ParentPageID)
	}
	page.CreatedAt = now()
	page.UpdatedAt = page.CreatedAt
	cp := *page
	s.pages[page.ID] = &cp
	return nil
}

// nextSortOrderLocked places a new page after the last of its siblings.
func (s *MemoryStore) nextSortOrderLocked(workspaceID models.WorkspaceID, parentID *models.PageID) int {
	next := 0
	for _, p := range s.pages {
		if deleted(p.DeletedAt) || p.WorkspaceID != workspaceID {
			continue
		}
		if !samePageParent(p.ParentPageID, parentID) {
			continue
		}
		if p.SortOrder >= next {
			next = p.SortOrder + 1
		}
	}
	return next
}

func samePageParent(a, b *models.PageID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (s *MemoryStore) GetPage(ctx context.Context, id models.PageID) (*models.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.pages[id]
	if !ok || deleted(p.DeletedAt) {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) UpdatePage(ctx context.Context, page *models.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.pages[page.ID]
	if !ok || deleted(existing.DeletedAt) {
		return fmt.Errorf("%w: page %s", store.ErrNotFound, page.ID)
	}
	page.CreatedAt = existing.CreatedAt
	page.UpdatedAt = now()
	cp := *page
	s.pages[page.ID] = &cp
	return nil
}

func (s *MemoryStore) DeletePage(ctx context.Context, id models.PageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.pages[id]; ok && !deleted(p.DeletedAt) {
		p.DeletedAt = softDelete()
	}
	return nil
}

func (s *MemoryStore) ListPages(ctx context.Context, workspaceID models.WorkspaceID) ([]*models.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Page
	for _, p := range s.pages {
		if !deleted(p.DeletedAt) && p.WorkspaceID == workspaceID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sortPages(out)
	return out, nil
}

func (s *MemoryStore) ListChildPages(ctx context.Context, parentPageID models.PageID) ([]*models.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Page
	for _, p := range s.pages {
		if deleted(p.DeletedAt) || p.ParentPageID == nil || *p.ParentPageID != parentPageID {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sortPages(out)
	return out, nil
}

func sortPages(pages []*models.Page) {
	sort.Slice(pages, func(i, j int) bool {
		pi, pj := pages[i], pages[j]
		ki, kj := "", ""
		if pi.ParentPageID != nil {
			ki = pi.ParentPageID.String()
		}
		if pj.ParentPageID != nil {
			kj = pj.ParentPageID.String()
		}
		if ki != kj {
			return ki < kj
		}
		if pi.SortOrder != pj.SortOrder {
			return pi.SortOrder < pj.SortOrder
		}
		return pi.CreatedAt.Before(pj.CreatedAt)
	})
}

// ReorderPages validates every move before touching anything, so a bad
// entry cannot leave the tree half-moved.
func (s *MemoryStore) ReorderPages(ctx context.Context, workspaceID models.WorkspaceID, moves []models.PageReorder) error {
	if len(moves) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Prospective parent map: current live tree with all moves applied.
	parents := make(map[models.PageID]*models.PageID)
	for id, p := range s.pages {
		if !deleted(p.DeletedAt) && p.WorkspaceID == workspaceID {
			parents[id] = p.ParentPageID
		}
	}
	for _, mv := range moves {
		if _, ok := parents[mv.PageID]; !ok {
			if p, exists := s.pages[mv.PageID]; !exists || deleted(p.DeletedAt) {
				return fmt.Errorf("%w: page %s", store.ErrNotFound, mv.PageID)
			}
			return fmt.Errorf("%w: page %s not in workspace %s", store.ErrValidation, mv.PageID, workspaceID)
		}
		if mv.ParentPageID != nil {
			if _, ok := parents[*mv.ParentPageID]; !ok {
				if p, exists := s.pages[*mv.ParentPageID]; !exists || deleted(p.DeletedAt) {
					return fmt.Errorf("%w: parent page %s", store.ErrNotFound, *mv.ParentPageID)
				}
				return fmt.Errorf("%w: parent page %s not in workspace %s", store.ErrValidation, *mv.ParentPageID, workspaceID)
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

	ts := now()
	for _, mv := range moves {
		p := s.pages[mv.PageID]
		p.ParentPageID = mv.ParentPageID
		p.SortOrder = mv.SortOrder
		p.UpdatedAt = ts
	}
	return nil
}

// hasCycle walks the ancestor chain of start and reports whether it loops
// back to start. The walk is bounded by the map size to survive a tree that
// is already corrupt.
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

func (s *MemoryStore) CreateBlock(ctx context.Context, block *models.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if block.ID.IsZero() {
		block.ID = models.NewBlockID()
	}
	if block.ClientID == "" {
		return fmt.Errorf("%w: block client ID is required", store.ErrValidation)
	}
	for _, b := range s.blocks {
		if !deleted(b.DeletedAt) && b.PageID == block.PageID && b.ClientID == block.ClientID {
			return fmt.Errorf("%w: client ID %q already exists on page %s", store.ErrValidation, block.ClientID, block.PageID)
		}
	}
	block.CreatedAt = now()
	block.UpdatedAt = block.CreatedAt
	cp := *block
	s.blocks[block.ID] = &cp
	return nil
}

func (s *MemoryStore) GetBlock(ctx context.Context, id models.BlockID) (*models.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.blocks[id]
	if !ok || deleted(b.DeletedAt) {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (s *MemoryStore) GetBlockByClientID(ctx context.Context, pageID models.PageID, clientID string) (*models.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.blocks {
		if !deleted(b.DeletedAt) && b.PageID == pageID && b.ClientID == clientID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) UpdateBlock(ctx context.Context, block *models.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.blocks[block.ID]
	if !ok || deleted(existing.DeletedAt) {
		return fmt.Errorf("%w: block %s", store.ErrNotFound, block.ID)
	}
	block.CreatedAt = existing.CreatedAt
	block.ClientID = existing.ClientID
	block.UpdatedAt = now()
	cp := *block
	s.blocks[block.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteBlock(ctx context.Context, id models.BlockID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.blocks[id]; ok && !deleted(b.DeletedAt) {
		b.DeletedAt = softDelete()
	}
	return nil
}

func (s *MemoryStore) ListBlocks(ctx context.Context, pageID models.PageID) ([]*models.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listBlocksLocked(pageID), nil
}

func (s *MemoryStore) listBlocksLocked(pageID models.PageID) []*models.Block {
	var out []*models.Block
	for _, b := range s.blocks {
		if !deleted(b.DeletedAt) && b.PageID == pageID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// ReconcileBlocks diffs the client's block list against storage by client
// ID and applies the difference in one critical section.
func (s *MemoryStore) ReconcileBlocks(ctx context.Context, pageID models.PageID, inputs []models.BlockInput) (*store.ReconcileResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	page, ok := s.pages[pageID]
	if !ok || deleted(page.DeletedAt) {
		return nil, fmt.Errorf("%w: page %s", store.ErrNotFound, pageID)
	}

	// An empty list means the editor had nothing to say, not that every
	// block should be deleted.
	if len(inputs) == 0 {
		return &store.ReconcileResult{Blocks: s.listBlocksLocked(pageID)}, nil
	}

	ordered, err := orderInputs(inputs)
	if err != nil {
		return nil, err
	}

	existing := make(map[string]*models.Block)
	for _, b := range s.blocks {
		if !deleted(b.DeletedAt) && b.PageID == pageID {
			existing[b.ClientID] = b
		}
	}

	result := &store.ReconcileResult{}
	ts := now()
	keep := make(map[string]bool, len(ordered))

	for pos, in := range ordered {
		keep[in.ClientID] = true
		if b, ok := existing[in.ClientID]; ok {
			if blockChanged(b, in, pos) {
				b.ParentBlockID = in.ParentBlockID
				b.Type = in.Type
				b.Content = in.Content.Clone()
				b.Properties = in.Properties.Clone()
				b.Position = pos
				b.UpdatedAt = ts
				result.Updated++
			}
			continue
		}
		nb := &models.Block{
			ID:            models.NewBlockID(),
			PageID:        pageID,
			ParentBlockID: in.ParentBlockID,
			ClientID:      in.ClientID,
			Type:          in.Type,
			Content:       in.Content.Clone(),
			Properties:    in.Properties.Clone(),
			Position:      pos,
			CreatedAt:     ts,
			UpdatedAt:     ts,
		}
		s.blocks[nb.ID] = nb
		result.Created++
	}

	for clientID, b := range existing {
		if !keep[clientID] {
			b.DeletedAt = softDelete()
			result.Deleted++
		}
	}

	result.Blocks = s.listBlocksLocked(pageID)
	return result, nil
}

// orderInputs validates client IDs and returns the inputs sorted by their
// requested position, which becomes the dense position assignment order.
// The sort is stable so ties keep the submitted order.
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

func (s *MemoryStore) CreatePermission(ctx context.Context, permission *models.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if permission.ID.IsZero() {
		permission.ID = models.NewPermissionID()
	}
	permission.ResourceID.SetTableForResourceType(permission.ResourceType)
	permission.CreatedAt = now()
	permission.UpdatedAt = permission.CreatedAt
	cp := *permission
	s.permissions[permission.ID] = &cp
	return nil
}

func (s *MemoryStore) GetPermissions(ctx context.Context, resourceType models.ResourceType, resourceID models.ResourceID) ([]*models.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Permission
	for _, p := range s.permissions {
		if p.ResourceType == resourceType && p.ResourceID.UUID() == resourceID.UUID() {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetUserPermissions(ctx context.Context, userID models.UserID) ([]*models.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Permission
	for _, p := range s.permissions {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdatePermission(ctx context.Context, permission *models.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.permissions[permission.ID]
	if !ok {
		return fmt.Errorf("%w: permission %s", store.ErrNotFound, permission.ID)
	}
	permission.CreatedAt = existing.CreatedAt
	permission.UpdatedAt = now()
	cp := *permission
	s.permissions[permission.ID] = &cp
	return nil
}

func (s *MemoryStore) DeletePermission(ctx context.Context, id models.PermissionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.permissions, id)
	return nil
}

func (s *MemoryStore) CheckPermission(ctx context.Context, userID models.UserID, resourceType models.ResourceType, resourceID models.ResourceID, level models.PermissionLevel) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.permissions {
		if p.UserID != userID || p.ResourceType != resourceType || p.ResourceID.UUID() != resourceID.UUID() {
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

// Migrate is a no-op for the in-memory store
func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error { return nil }
