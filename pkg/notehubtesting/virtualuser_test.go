package notehubtesting

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notehub-io/notehub/pkg/client"
	"github.com/notehub-io/notehub/pkg/models"
	"github.com/notehub-io/notehub/pkg/notehub"
)

func startServer(t *testing.T) string {
	t.Helper()
	app, err := notehub.New(&notehub.Config{
		StoreBackend: notehub.BackendMemory,
		JWTSecret:    "test-secret",
		ServerPort:   "0",
	})
	require.NoError(t, err)
	ts := httptest.NewServer(app.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = app.Close()
	})
	return ts.URL
}

func TestVirtualUserScenario(t *testing.T) {
	baseURL := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	vu := NewVirtualUser(0, baseURL)
	require.NoError(t, vu.RunScenario(ctx))
}

func TestConcurrentVirtualUsers(t *testing.T) {
	baseURL := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	const numUsers = 8
	errs := make([]error, numUsers)
	var wg sync.WaitGroup
	for i := 0; i < numUsers; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			errs[index] = NewVirtualUser(index, baseURL).RunScenario(ctx)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "virtual user %d", i)
	}
}

// TestCollaborationRoundTrip wires the whole client stack together: one
// user edits through the Syncer while another watches the page over a live
// session and receives the reconcile broadcast.
func TestCollaborationRoundTrip(t *testing.T) {
	baseURL := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	editor := NewVirtualUser(0, baseURL)
	require.NoError(t, editor.SignUp(ctx))
	ws, err := editor.CreateWorkspace(ctx, "Shared")
	require.NoError(t, err)
	page, err := editor.CreatePage(ctx, "Design doc")
	require.NoError(t, err)

	watcher := NewVirtualUser(1, baseURL)
	require.NoError(t, watcher.SignUp(ctx))
	_, err = editor.Client.AddMember(ctx, ws.ID, watcher.User.ID, models.RoleEditor)
	require.NoError(t, err)

	received := make(chan models.Event, 16)
	session, err := watcher.Client.Connect(ctx, ws.ID, watcher.User.ID, func(ev models.Event) {
		received <- ev
	})
	require.NoError(t, err)
	defer session.Close()
	require.NoError(t, session.SubscribePage(page.ID))

	// Give the server a moment to process the page subscription before
	// the editor's save fires.
	time.Sleep(100 * time.Millisecond)

	syncer := client.NewSyncer(editor.Client, page.ID,
		client.WithDebounce(20*time.Millisecond))
	defer syncer.Close()

	syncer.Queue([]models.BlockInput{
		{ClientID: "c1", Type: models.BlockTypeHeading1, Content: models.JSONMap{"text": "Design doc"}, Position: 0},
		{ClientID: "c2", Type: models.BlockTypeParagraph, Content: models.JSONMap{"text": "Draft"}, Position: 1},
	})
	require.NoError(t, syncer.Flush())

	select {
	case ev := <-received:
		assert.Equal(t, models.EventBlocksReconciled, ev.Kind)
		assert.Equal(t, editor.User.ID, ev.UserID)
		require.NotNil(t, ev.Reconcile)
		assert.Equal(t, page.ID, ev.Reconcile.PageID)
		assert.Equal(t, 2, ev.Reconcile.Created)
		require.Len(t, ev.Reconcile.Blocks, 2)
		assert.Equal(t, "c1", ev.Reconcile.Blocks[0].ClientID)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never received the reconcile event")
	}

	// The watcher sees the authoritative list over plain HTTP too.
	blocks, err := watcher.Client.ListBlocks(ctx, page.ID)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, 0, blocks[0].Position)
	assert.Equal(t, 1, blocks[1].Position)
}
