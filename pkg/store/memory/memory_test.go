package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notehub-io/notehub/pkg/models"
	"github.com/notehub-io/notehub/pkg/store"
)

func newFixture(t *testing.T) (*MemoryStore, *models.User, *models.Workspace, *models.Page) {
	t.Helper()
	s := NewMemoryStore()
	ctx := context.Background()

	user := &models.User{Email: "alice@example.com", Name: "Alice"}
	require.NoError(t, s.CreateUser(ctx, user))

	ws := &models.Workspace{Name: "Team", OwnerID: user.ID}
	require.NoError(t, s.CreateWorkspace(ctx, ws))

	page := &models.Page{WorkspaceID: ws.ID, Title: "Notes", CreatedBy: user.ID}
	require.NoError(t, s.CreatePage(ctx, page))

	return s, user, ws, page
}

func input(clientID string, typ models.BlockType, text string, pos int) models.BlockInput {
	return models.BlockInput{
		ClientID: clientID,
		Type:     typ,
		Content:  models.JSONMap{"text": text},
		Position: pos,
	}
}

func clientIDs(blocks []*models.Block) []string {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.ClientID
	}
	return out
}

func TestReconcileCreatesUpdatesDeletes(t *testing.T) {
	s, _, _, page := newFixture(t)
	ctx := context.Background()

	res, err := s.ReconcileBlocks(ctx, page.ID, []models.BlockInput{
		input("a", models.BlockTypeParagraph, "first", 0),
		input("b", models.BlockTypeParagraph, "second", 1),
		input("c", models.BlockTypeHeading1, "title", 2),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Created)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 0, res.Deleted)
	assert.Equal(t, []string{"a", "b", "c"}, clientIDs(res.Blocks))

	// Update "a", drop "b", keep "c".
	res, err = s.ReconcileBlocks(ctx, page.ID, []models.BlockInput{
		input("a", models.BlockTypeParagraph, "first edited", 0),
		input("c", models.BlockTypeHeading1, "title", 1),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 1, res.Deleted)
	assert.GreaterOrEqual(t, res.Updated, 1) // "a" changed; "c" moved position
	assert.Equal(t, []string{"a", "c"}, clientIDs(res.Blocks))
	assert.Equal(t, "first edited", res.Blocks[0].Content["text"])

	// The dropped block is gone from reads.
	b, err := s.GetBlockByClientID(ctx, page.ID, "b")
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestReconcilePositionsAreDense(t *testing.T) {
	s, _, _, page := newFixture(t)
	ctx := context.Background()

	// Client positions with gaps and an out-of-order submission.
	res, err := s.ReconcileBlocks(ctx, page.ID, []models.BlockInput{
		input("z", models.BlockTypeParagraph, "last", 40),
		input("x", models.BlockTypeParagraph, "first", 3),
		input("y", models.BlockTypeParagraph, "middle", 17),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z"}, clientIDs(res.Blocks))
	for i, b := range res.Blocks {
		assert.Equal(t, i, b.Position)
	}
}

func TestReconcileEmptyInputIsNoOp(t *testing.T) {
	s, _, _, page := newFixture(t)
	ctx := context.Background()

	_, err := s.ReconcileBlocks(ctx, page.ID, []models.BlockInput{
		input("a", models.BlockTypeParagraph, "keep me", 0),
	})
	require.NoError(t, err)

	res, err := s.ReconcileBlocks(ctx, page.ID, nil)
	require.NoError(t, err)
	assert.Zero(t, res.Created)
	assert.Zero(t, res.Updated)
	assert.Zero(t, res.Deleted)
	assert.Equal(t, []string{"a"}, clientIDs(res.Blocks))
}

func TestReconcileIsIdempotent(t *testing.T) {
	s, _, _, page := newFixture(t)
	ctx := context.Background()

	inputs := []models.BlockInput{
		input("a", models.BlockTypeParagraph, "one", 0),
		input("b", models.BlockTypeTodo, "two", 1),
	}
	_, err := s.ReconcileBlocks(ctx, page.ID, inputs)
	require.NoError(t, err)

	res, err := s.ReconcileBlocks(ctx, page.ID, inputs)
	require.NoError(t, err)
	assert.Zero(t, res.Created)
	assert.Zero(t, res.Updated)
	assert.Zero(t, res.Deleted)
	assert.Equal(t, []string{"a", "b"}, clientIDs(res.Blocks))
}

func TestReconcileValidation(t *testing.T) {
	s, _, _, page := newFixture(t)
	ctx := context.Background()

	_, err := s.ReconcileBlocks(ctx, page.ID, []models.BlockInput{
		input("a", models.BlockTypeParagraph, "ok", 0),
	})
	require.NoError(t, err)

	t.Run("blank client ID", func(t *testing.T) {
		_, err := s.ReconcileBlocks(ctx, page.ID, []models.BlockInput{
			input("", models.BlockTypeParagraph, "bad", 0),
		})
		require.ErrorIs(t, err, store.ErrValidation)
	})

	t.Run("duplicate client ID", func(t *testing.T) {
		_, err := s.ReconcileBlocks(ctx, page.ID, []models.BlockInput{
			input("dup", models.BlockTypeParagraph, "one", 0),
			input("dup", models.BlockTypeParagraph, "two", 1),
		})
		require.ErrorIs(t, err, store.ErrValidation)
	})

	t.Run("missing page", func(t *testing.T) {
		_, err := s.ReconcileBlocks(ctx, models.NewPageID(), []models.BlockInput{
			input("a", models.BlockTypeParagraph, "orphan", 0),
		})
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	// A failed reconcile must not have written anything.
	blocks, err := s.ListBlocks(ctx, page.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, clientIDs(blocks))
	assert.Equal(t, "ok", blocks[0].Content["text"])
}

func TestReconcileClientIDNotReusedAfterDelete(t *testing.T) {
	s, _, _, page := newFixture(t)
	ctx := context.Background()

	res, err := s.ReconcileBlocks(ctx, page.ID, []models.BlockInput{
		input("a", models.BlockTypeParagraph, "original", 0),
	})
	require.NoError(t, err)
	originalID := res.Blocks[0].ID

	// Drop "a", then submit a block with the same client ID again. It must
	// come back as a brand new server record, not a resurrection.
	_, err = s.ReconcileBlocks(ctx, page.ID, []models.BlockInput{
		input("b", models.BlockTypeParagraph, "placeholder", 0),
	})
	require.NoError(t, err)

	res, err = s.ReconcileBlocks(ctx, page.ID, []models.BlockInput{
		input("a", models.BlockTypeParagraph, "reborn", 0),
		input("b", models.BlockTypeParagraph, "placeholder", 1),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	reborn := res.Blocks[0]
	assert.Equal(t, "a", reborn.ClientID)
	assert.NotEqual(t, originalID, reborn.ID)
	assert.Equal(t, "reborn", reborn.Content["text"])
}

func TestCreateBlockRejectsDuplicateClientID(t *testing.T) {
	s, _, _, page := newFixture(t)
	ctx := context.Background()

	require.NoError(t, s.CreateBlock(ctx, &models.Block{
		PageID: page.ID, ClientID: "a", Type: models.BlockTypeParagraph,
	}))
	err := s.CreateBlock(ctx, &models.Block{
		PageID: page.ID, ClientID: "a", Type: models.BlockTypeParagraph,
	})
	require.ErrorIs(t, err, store.ErrValidation)

	// Uniqueness is per page; another page may reuse the same client ID.
	other := &models.Page{WorkspaceID: page.WorkspaceID, Title: "Other", CreatedBy: page.CreatedBy}
	require.NoError(t, s.CreatePage(ctx, other))
	require.NoError(t, s.CreateBlock(ctx, &models.Block{
		PageID: other.ID, ClientID: "a", Type: models.BlockTypeParagraph,
	}))
}

func TestDeleteBlockIsIdempotent(t *testing.T) {
	s, _, _, page := newFixture(t)
	ctx := context.Background()

	b := &models.Block{PageID: page.ID, ClientID: "a", Type: models.BlockTypeParagraph}
	require.NoError(t, s.CreateBlock(ctx, b))
	require.NoError(t, s.DeleteBlock(ctx, b.ID))
	require.NoError(t, s.DeleteBlock(ctx, b.ID))
	require.NoError(t, s.DeleteBlock(ctx, models.NewBlockID()))
}

func TestCreatePageAppendsAfterSiblings(t *testing.T) {
	s, user, ws, first := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, 0, first.SortOrder)

	second := &models.Page{WorkspaceID: ws.ID, Title: "Second", CreatedBy: user.ID}
	require.NoError(t, s.CreatePage(ctx, second))
	assert.Equal(t, 1, second.SortOrder)

	// Children order independently of roots.
	child := &models.Page{WorkspaceID: ws.ID, Title: "Child", CreatedBy: user.ID, ParentPageID: &first.ID}
	require.NoError(t, s.CreatePage(ctx, child))
	assert.Equal(t, 0, child.SortOrder)
}

func TestReorderPagesAtomicRollback(t *testing.T) {
	s, user, ws, p1 := newFixture(t)
	ctx := context.Background()

	p2 := &models.Page{WorkspaceID: ws.ID, Title: "Two", CreatedBy: user.ID}
	require.NoError(t, s.CreatePage(ctx, p2))

	// Second entry references a page from nowhere; the whole batch fails.
	err := s.ReorderPages(ctx, ws.ID, []models.PageReorder{
		{PageID: p1.ID, SortOrder: 5},
		{PageID: models.NewPageID(), SortOrder: 0},
	})
	require.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.GetPage(ctx, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.SortOrder, "failed batch must not apply any entry")
}

func TestReorderPagesRejectsCycles(t *testing.T) {
	s, user, ws, parent := newFixture(t)
	ctx := context.Background()

	child := &models.Page{WorkspaceID: ws.ID, Title: "Child", CreatedBy: user.ID, ParentPageID: &parent.ID}
	require.NoError(t, s.CreatePage(ctx, child))
	grandchild := &models.Page{WorkspaceID: ws.ID, Title: "Grandchild", CreatedBy: user.ID, ParentPageID: &child.ID}
	require.NoError(t, s.CreatePage(ctx, grandchild))

	// Moving the root under its own grandchild loops the chain.
	err := s.ReorderPages(ctx, ws.ID, []models.PageReorder{
		{PageID: parent.ID, ParentPageID: &grandchild.ID, SortOrder: 0},
	})
	require.ErrorIs(t, err, store.ErrValidation)

	got, err := s.GetPage(ctx, parent.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ParentPageID)

	// Self-parenting is the degenerate cycle.
	err = s.ReorderPages(ctx, ws.ID, []models.PageReorder{
		{PageID: child.ID, ParentPageID: &child.ID, SortOrder: 0},
	})
	require.ErrorIs(t, err, store.ErrValidation)
}

func TestReorderPagesMissingVersusForeignPage(t *testing.T) {
	s, user, ws, p1 := newFixture(t)
	ctx := context.Background()

	// A page ID that exists nowhere is NotFound.
	err := s.ReorderPages(ctx, ws.ID, []models.PageReorder{
		{PageID: models.NewPageID(), SortOrder: 0},
	})
	require.ErrorIs(t, err, store.ErrNotFound)

	// Same for an unknown parent.
	ghost := models.NewPageID()
	err = s.ReorderPages(ctx, ws.ID, []models.PageReorder{
		{PageID: p1.ID, ParentPageID: &ghost, SortOrder: 0},
	})
	require.ErrorIs(t, err, store.ErrNotFound)

	// A live page in another workspace is a validation failure instead.
	other := &models.Workspace{Name: "Other", OwnerID: user.ID}
	require.NoError(t, s.CreateWorkspace(ctx, other))
	foreign := &models.Page{WorkspaceID: other.ID, Title: "Foreign", CreatedBy: user.ID}
	require.NoError(t, s.CreatePage(ctx, foreign))

	err = s.ReorderPages(ctx, ws.ID, []models.PageReorder{
		{PageID: foreign.ID, SortOrder: 0},
	})
	require.ErrorIs(t, err, store.ErrValidation)
	require.NotErrorIs(t, err, store.ErrNotFound)
}

func TestReorderPagesAppliesBatch(t *testing.T) {
	s, user, ws, p1 := newFixture(t)
	ctx := context.Background()

	p2 := &models.Page{WorkspaceID: ws.ID, Title: "Two", CreatedBy: user.ID}
	require.NoError(t, s.CreatePage(ctx, p2))

	require.NoError(t, s.ReorderPages(ctx, ws.ID, []models.PageReorder{
		{PageID: p1.ID, ParentPageID: &p2.ID, SortOrder: 0},
		{PageID: p2.ID, SortOrder: 0},
	}))

	got, err := s.GetPage(ctx, p1.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ParentPageID)
	assert.Equal(t, p2.ID, *got.ParentPageID)

	children, err := s.ListChildPages(ctx, p2.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, p1.ID, children[0].ID)
}

func TestDeleteWorkspaceCascades(t *testing.T) {
	s, _, ws, page := newFixture(t)
	ctx := context.Background()

	res, err := s.ReconcileBlocks(ctx, page.ID, []models.BlockInput{
		input("a", models.BlockTypeParagraph, "text", 0),
	})
	require.NoError(t, err)
	blockID := res.Blocks[0].ID

	require.NoError(t, s.DeleteWorkspace(ctx, ws.ID))

	w, err := s.GetWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.Nil(t, w)

	p, err := s.GetPage(ctx, page.ID)
	require.NoError(t, err)
	assert.Nil(t, p, "pages of a deleted workspace must not stay reachable")

	b, err := s.GetBlock(ctx, blockID)
	require.NoError(t, err)
	assert.Nil(t, b)

	pages, err := s.ListPages(ctx, ws.ID)
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestReconcileTracksParentBlocks(t *testing.T) {
	s, _, _, page := newFixture(t)
	ctx := context.Background()

	res, err := s.ReconcileBlocks(ctx, page.ID, []models.BlockInput{
		input("toggle", models.BlockTypeParagraph, "parent", 0),
		input("child", models.BlockTypeParagraph, "nested", 1),
	})
	require.NoError(t, err)
	parentID := res.Blocks[0].ID

	// Nest "child" under "toggle".
	nested := input("child", models.BlockTypeParagraph, "nested", 1)
	nested.ParentBlockID = &parentID
	res, err = s.ReconcileBlocks(ctx, page.ID, []models.BlockInput{
		input("toggle", models.BlockTypeParagraph, "parent", 0),
		nested,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated, "a parent change alone must count as an update")
	require.NotNil(t, res.Blocks[1].ParentBlockID)
	assert.Equal(t, parentID, *res.Blocks[1].ParentBlockID)

	// Re-sending the same nesting is a no-op.
	res, err = s.ReconcileBlocks(ctx, page.ID, []models.BlockInput{
		input("toggle", models.BlockTypeParagraph, "parent", 0),
		nested,
	})
	require.NoError(t, err)
	assert.Zero(t, res.Updated)
}

func TestWorkspaceMembership(t *testing.T) {
	s, owner, ws, _ := newFixture(t)
	ctx := context.Background()

	// Creator is the owner member.
	m, err := s.GetMember(ctx, ws.ID, owner.ID)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, models.RoleOwner, m.Role)

	guest := &models.User{Email: "bob@example.com", Name: "Bob"}
	require.NoError(t, s.CreateUser(ctx, guest))

	require.NoError(t, s.AddMember(ctx, &models.WorkspaceMember{
		WorkspaceID: ws.ID, UserID: guest.ID, Role: models.RoleViewer,
	}))
	err = s.AddMember(ctx, &models.WorkspaceMember{
		WorkspaceID: ws.ID, UserID: guest.ID, Role: models.RoleEditor,
	})
	require.ErrorIs(t, err, store.ErrValidation)

	list, err := s.ListWorkspaces(ctx, guest.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ws.ID, list[0].ID)

	require.NoError(t, s.RemoveMember(ctx, ws.ID, guest.ID))
	list, err = s.ListWorkspaces(ctx, guest.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestReadOnlyWrapper(t *testing.T) {
	s, _, _, page := newFixture(t)
	ctx := context.Background()

	readOnly := true
	wrapped := store.NewReadOnlyStore(s, func() bool { return readOnly })

	_, err := wrapped.ReconcileBlocks(ctx, page.ID, []models.BlockInput{
		input("a", models.BlockTypeParagraph, "nope", 0),
	})
	require.ErrorIs(t, err, store.ErrReadOnly)

	// Reads pass through.
	got, err := wrapped.GetPage(ctx, page.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	readOnly = false
	_, err = wrapped.ReconcileBlocks(ctx, page.ID, []models.BlockInput{
		input("a", models.BlockTypeParagraph, "yes", 0),
	})
	require.NoError(t, err)
}
