// Package notehubtesting simulates realistic notehub users for end-to-end
// and load testing.
//
// [VirtualUser] drives the public API through
// [github.com/notehub-io/notehub/pkg/client]: it signs up, creates a
// workspace and pages, edits blocks through the reconcile endpoint the way
// an editor's save loop would, reorders the page tree, and verifies that
// what the server returns matches what it submitted. Behavior is
// deterministic per user index, so failures reproduce, and independent
// virtual users can run concurrently against one server for load testing.
package notehubtesting

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/notehub-io/notehub/pkg/client"
	"github.com/notehub-io/notehub/pkg/models"
)

var blockTypes = []models.BlockType{
	models.BlockTypeParagraph,
	models.BlockTypeHeading1,
	models.BlockTypeBullet,
	models.BlockTypeCode,
	models.BlockTypeTodo,
}

// VirtualUser is a stateful simulated user. It tracks the content it
// created so VerifyBlocks can compare server state against expectations.
// The RNG is seeded with the user index for reproducible scenarios.
type VirtualUser struct {
	Index    int
	Name     string
	Email    string
	Password string
	Client   *client.Client
	RNG      *rand.Rand

	// Session state
	User             *models.User
	CurrentWorkspace *models.Workspace
	CurrentPage      *models.Page

	// Desired block state per page, as last submitted to reconcile.
	blockState map[models.PageID][]models.BlockInput

	mu sync.RWMutex
}

// NewVirtualUser creates a virtual user with its own API client. The email
// embeds a timestamp so repeated test runs against a persistent backend do
// not collide.
func NewVirtualUser(index int, baseURL string) *VirtualUser {
	return &VirtualUser{
		Index:      index,
		Name:       fmt.Sprintf("Virtual User %d", index),
		Email:      fmt.Sprintf("user%d-%d@test.com", index, time.Now().UnixNano()),
		Password:   fmt.Sprintf("password%d", index),
		Client:     client.NewClient(baseURL),
		RNG:        rand.New(rand.NewSource(int64(index))),
		blockState: make(map[models.PageID][]models.BlockInput),
	}
}

// SignUp creates an account for this virtual user.
func (vu *VirtualUser) SignUp(ctx context.Context) error {
	authResp, err := vu.Client.SignUp(ctx, vu.Email, vu.Name, vu.Password)
	if err != nil {
		return fmt.Errorf("virtual user %d signup failed: %w", vu.Index, err)
	}

	vu.mu.Lock()
	vu.User = authResp.User
	vu.mu.Unlock()

	return nil
}

// CreateWorkspace creates a workspace and makes it current.
func (vu *VirtualUser) CreateWorkspace(ctx context.Context, name string) (*models.Workspace, error) {
	created, err := vu.Client.CreateWorkspace(ctx, name, "")
	if err != nil {
		return nil, fmt.Errorf("virtual user %d failed to create workspace: %w", vu.Index, err)
	}

	vu.mu.Lock()
	vu.CurrentWorkspace = created
	vu.mu.Unlock()

	return created, nil
}

// CreatePage creates a page in the current workspace and makes it current.
func (vu *VirtualUser) CreatePage(ctx context.Context, title string) (*models.Page, error) {
	vu.mu.RLock()
	workspace := vu.CurrentWorkspace
	vu.mu.RUnlock()
	if workspace == nil {
		return nil, fmt.Errorf("virtual user %d has no current workspace", vu.Index)
	}

	page, err := vu.Client.CreatePage(ctx, client.CreatePageRequest{
		WorkspaceID: workspace.ID,
		Title:       title,
	})
	if err != nil {
		return nil, fmt.Errorf("virtual user %d failed to create page: %w", vu.Index, err)
	}

	vu.mu.Lock()
	vu.CurrentPage = page
	vu.mu.Unlock()

	return page, nil
}

// EditBlocks mutates the current page's desired block list the way an
// editor would between saves: it appends a few blocks, rewrites the text
// of a random existing one, and occasionally drops one. The whole desired
// list is then submitted through the reconcile endpoint.
func (vu *VirtualUser) EditBlocks(ctx context.Context) error {
	vu.mu.Lock()
	page := vu.CurrentPage
	if page == nil {
		vu.mu.Unlock()
		return fmt.Errorf("virtual user %d has no current page", vu.Index)
	}
	blocks := vu.blockState[page.ID]

	// Append 1-3 new blocks.
	for i, n := 0, 1+vu.RNG.Intn(3); i < n; i++ {
		blocks = append(blocks, models.BlockInput{
			ClientID: fmt.Sprintf("u%d-b%d", vu.Index, len(blocks)),
			Type:     blockTypes[vu.RNG.Intn(len(blockTypes))],
			Content:  models.JSONMap{"text": fmt.Sprintf("edit %d by user %d", len(blocks), vu.Index)},
		})
	}
	// Rewrite one existing block.
	if len(blocks) > 0 {
		i := vu.RNG.Intn(len(blocks))
		blocks[i].Content = models.JSONMap{"text": fmt.Sprintf("rewritten by user %d", vu.Index)}
	}
	// Occasionally drop one; reconcile deletes it by omission.
	if len(blocks) > 3 && vu.RNG.Intn(4) == 0 {
		i := vu.RNG.Intn(len(blocks))
		blocks = append(blocks[:i], blocks[i+1:]...)
	}
	for i := range blocks {
		blocks[i].Position = i
	}
	vu.blockState[page.ID] = blocks
	payload := append([]models.BlockInput(nil), blocks...)
	vu.mu.Unlock()

	result, err := vu.Client.ReconcileBlocks(ctx, page.ID, payload)
	if err != nil {
		return fmt.Errorf("virtual user %d reconcile failed: %w", vu.Index, err)
	}
	if len(result.Blocks) != len(payload) {
		return fmt.Errorf("virtual user %d: reconcile returned %d blocks, submitted %d",
			vu.Index, len(result.Blocks), len(payload))
	}
	return nil
}

// VerifyBlocks fetches the current page's blocks and checks them against
// the last submitted state: same client IDs in the same order, with dense
// positions.
func (vu *VirtualUser) VerifyBlocks(ctx context.Context) error {
	vu.mu.RLock()
	page := vu.CurrentPage
	var want []models.BlockInput
	if page != nil {
		want = append(want, vu.blockState[page.ID]...)
	}
	vu.mu.RUnlock()
	if page == nil {
		return fmt.Errorf("virtual user %d has no current page", vu.Index)
	}

	got, err := vu.Client.ListBlocks(ctx, page.ID)
	if err != nil {
		return fmt.Errorf("virtual user %d failed to list blocks: %w", vu.Index, err)
	}
	if len(got) != len(want) {
		return fmt.Errorf("virtual user %d: server has %d blocks, want %d", vu.Index, len(got), len(want))
	}
	for i, b := range got {
		if b.ClientID != want[i].ClientID {
			return fmt.Errorf("virtual user %d: block %d is %q, want %q", vu.Index, i, b.ClientID, want[i].ClientID)
		}
		if b.Position != i {
			return fmt.Errorf("virtual user %d: block %q has position %d, want %d", vu.Index, b.ClientID, b.Position, i)
		}
	}
	return nil
}

// ReorderPages shuffles the current workspace's root pages into a new
// order and submits the batch move.
func (vu *VirtualUser) ReorderPages(ctx context.Context) error {
	vu.mu.RLock()
	workspace := vu.CurrentWorkspace
	vu.mu.RUnlock()
	if workspace == nil {
		return fmt.Errorf("virtual user %d has no current workspace", vu.Index)
	}

	pages, err := vu.Client.ListPages(ctx, workspace.ID)
	if err != nil {
		return fmt.Errorf("virtual user %d failed to list pages: %w", vu.Index, err)
	}
	if len(pages) < 2 {
		return nil
	}

	order := vu.RNG.Perm(len(pages))
	moves := make([]models.PageReorder, len(pages))
	for i, p := range pages {
		moves[i] = models.PageReorder{
			PageID:       p.ID,
			ParentPageID: p.ParentPageID,
			SortOrder:    order[i],
		}
	}
	if err := vu.Client.ReorderPages(ctx, workspace.ID, moves); err != nil {
		return fmt.Errorf("virtual user %d reorder failed: %w", vu.Index, err)
	}
	return nil
}

// RunScenario runs a full user session: sign up, build a workspace with a
// few pages, edit blocks across several save cycles, reorder the page
// tree, and verify the final state.
func (vu *VirtualUser) RunScenario(ctx context.Context) error {
	if err := vu.SignUp(ctx); err != nil {
		return err
	}
	if _, err := vu.CreateWorkspace(ctx, fmt.Sprintf("Workspace %d", vu.Index)); err != nil {
		return err
	}

	numPages := 2 + vu.RNG.Intn(2)
	for p := 0; p < numPages; p++ {
		if _, err := vu.CreatePage(ctx, fmt.Sprintf("Page %d-%d", vu.Index, p)); err != nil {
			return err
		}
		for edit := 0; edit < 3; edit++ {
			if err := vu.EditBlocks(ctx); err != nil {
				return err
			}
		}
		if err := vu.VerifyBlocks(ctx); err != nil {
			return err
		}
	}

	if err := vu.ReorderPages(ctx); err != nil {
		return err
	}
	return vu.VerifyBlocks(ctx)
}
