package client

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notehub-io/notehub/pkg/models"
	"github.com/notehub-io/notehub/pkg/store"
)

// fakeSaver records reconcile calls and returns scripted errors in order,
// then succeeds. A non-nil gate makes each call block until the gate is
// signalled, for testing in-flight coalescing.
type fakeSaver struct {
	mu    sync.Mutex
	calls [][]models.BlockInput
	errs  []error
	gate  chan struct{}
}

func (f *fakeSaver) ReconcileBlocks(ctx context.Context, pageID models.PageID, blocks []models.BlockInput) (*store.ReconcileResult, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]models.BlockInput(nil), blocks...))
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &store.ReconcileResult{Created: len(blocks)}, nil
}

func (f *fakeSaver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeSaver) lastCall() []models.BlockInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

func fastSyncer(saver BlockSaver) *Syncer {
	return NewSyncer(saver, models.NewPageID(),
		WithDebounce(20*time.Millisecond),
		WithRetry(3, 10*time.Millisecond),
	)
}

func input(clientID, text string) models.BlockInput {
	return models.BlockInput{
		ClientID: clientID,
		Type:     models.BlockTypeParagraph,
		Content:  models.JSONMap{"text": text},
	}
}

func TestSyncerDebouncesBursts(t *testing.T) {
	saver := &fakeSaver{}
	s := fastSyncer(saver)
	defer s.Close()

	// Three rapid edits within one debounce window.
	s.Queue([]models.BlockInput{input("c1", "a")})
	s.Queue([]models.BlockInput{input("c1", "ab")})
	s.Queue([]models.BlockInput{input("c1", "abc")})
	assert.Equal(t, SyncPending, s.State())

	require.Eventually(t, func() bool {
		return s.State() == SyncIdle
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, 1, saver.callCount())
	last := saver.lastCall()
	require.Len(t, last, 1)
	assert.Equal(t, "abc", last[0].Content["text"])
}

func TestSyncerSkipsUnchangedPayload(t *testing.T) {
	saver := &fakeSaver{}
	s := fastSyncer(saver)
	defer s.Close()

	loaded := []*models.Block{{
		ClientID: "c1",
		Type:     models.BlockTypeParagraph,
		Content:  models.JSONMap{"text": "hello"},
		Position: 0,
	}}
	s.MarkLoaded(loaded)

	// Re-queueing exactly what the server already has saves nothing.
	s.Queue([]models.BlockInput{{
		ClientID: "c1",
		Type:     models.BlockTypeParagraph,
		Content:  models.JSONMap{"text": "hello"},
		Position: 0,
	}})
	require.Eventually(t, func() bool {
		return s.State() == SyncIdle
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, saver.callCount())
}

func TestSyncerRetriesTransientErrors(t *testing.T) {
	saver := &fakeSaver{errs: []error{
		&APIError{StatusCode: http.StatusInternalServerError},
		&APIError{StatusCode: http.StatusServiceUnavailable},
	}}
	s := fastSyncer(saver)
	defer s.Close()

	s.Queue([]models.BlockInput{input("c1", "a")})
	require.Eventually(t, func() bool {
		return s.State() == SyncIdle
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 3, saver.callCount())
	assert.NoError(t, s.LastError())
}

func TestSyncerExhaustedRetriesPreserveBuffer(t *testing.T) {
	saver := &fakeSaver{errs: []error{
		&APIError{StatusCode: http.StatusInternalServerError},
		&APIError{StatusCode: http.StatusInternalServerError},
		&APIError{StatusCode: http.StatusInternalServerError},
	}}
	s := fastSyncer(saver)
	defer s.Close()

	edits := []models.BlockInput{input("c1", "do not lose me")}
	s.Queue(edits)
	require.Eventually(t, func() bool {
		return s.State() == SyncFailed
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 3, saver.callCount())
	assert.Error(t, s.LastError())
	assert.Equal(t, edits, s.Buffer())

	// Further edits update the buffer but trigger no saves.
	s.Queue([]models.BlockInput{input("c1", "still buffered")})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 3, saver.callCount())
	assert.Equal(t, SyncFailed, s.State())
	require.Len(t, s.Buffer(), 1)
	assert.Equal(t, "still buffered", s.Buffer()[0].Content["text"])
}

func TestSyncerValidationErrorFailsWithoutRetry(t *testing.T) {
	saver := &fakeSaver{errs: []error{
		&APIError{StatusCode: http.StatusBadRequest, Body: `{"error":"duplicate client ID"}`},
	}}
	s := fastSyncer(saver)
	defer s.Close()

	s.Queue([]models.BlockInput{input("c1", "a"), input("c1", "b")})
	require.Eventually(t, func() bool {
		return s.State() == SyncFailed
	}, time.Second, 5*time.Millisecond)

	// A rejected payload is not retried; the same bytes cannot succeed.
	assert.Equal(t, 1, saver.callCount())
}

func TestSyncerFlushRetriesAfterFailure(t *testing.T) {
	saver := &fakeSaver{errs: []error{
		&APIError{StatusCode: http.StatusInternalServerError},
		&APIError{StatusCode: http.StatusInternalServerError},
		&APIError{StatusCode: http.StatusInternalServerError},
	}}
	s := fastSyncer(saver)
	defer s.Close()

	s.Queue([]models.BlockInput{input("c1", "a")})
	require.Eventually(t, func() bool {
		return s.State() == SyncFailed
	}, time.Second, 5*time.Millisecond)

	// The backend recovered; a manual flush saves the preserved buffer.
	require.NoError(t, s.Flush())
	assert.Equal(t, SyncIdle, s.State())
	assert.Equal(t, 4, saver.callCount())
}

func TestSyncerCoalescesEditsDuringSave(t *testing.T) {
	saver := &fakeSaver{gate: make(chan struct{})}
	s := fastSyncer(saver)
	defer s.Close()

	s.Queue([]models.BlockInput{input("c1", "first")})
	require.Eventually(t, func() bool {
		return s.State() == SyncSaving
	}, time.Second, 5*time.Millisecond)

	// Two more edits land while the first save is blocked in flight.
	s.Queue([]models.BlockInput{input("c1", "second")})
	s.Queue([]models.BlockInput{input("c1", "third")})

	saver.gate <- struct{}{}
	saver.gate <- struct{}{}

	require.Eventually(t, func() bool {
		return s.State() == SyncIdle
	}, time.Second, 5*time.Millisecond)

	// The in-flight save carried "first"; the follow-up carried only the
	// latest buffer.
	require.Equal(t, 2, saver.callCount())
	assert.Equal(t, "third", saver.lastCall()[0].Content["text"])
}
