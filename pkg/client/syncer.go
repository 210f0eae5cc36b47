package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/notehub-io/notehub/pkg/models"
	"github.com/notehub-io/notehub/pkg/store"
)

// Defaults for the save loop. Edits coalesce for the debounce window
// before a save fires, and a failed save is retried with a fixed delay.
const (
	DefaultDebounce   = 2 * time.Second
	DefaultRetryDelay = 2 * time.Second
	DefaultMaxTries   = 3
)

// SyncState is the Syncer's lifecycle position.
type SyncState string

const (
	// SyncIdle means the buffer matches the last saved state.
	SyncIdle SyncState = "idle"
	// SyncPending means edits are buffered and the debounce timer is
	// running.
	SyncPending SyncState = "pending"
	// SyncSaving means a save is in flight.
	SyncSaving SyncState = "saving"
	// SyncFailed is terminal: retries were exhausted or the server
	// rejected the buffer. Buffered edits are preserved, and nothing is
	// saved until Flush is called explicitly.
	SyncFailed SyncState = "failed"
)

// ErrSyncClosed is returned by Flush after Close.
var ErrSyncClosed = errors.New("syncer closed")

// BlockSaver is the slice of the API the Syncer needs. *Client satisfies
// it.
type BlockSaver interface {
	ReconcileBlocks(ctx context.Context, pageID models.PageID, blocks []models.BlockInput) (*store.ReconcileResult, error)
}

// Syncer pushes a page's block list to the server with debouncing,
// deduplication, and retries. The editor calls Queue with the complete
// desired block list on every local change; the Syncer coalesces bursts of
// edits, skips saves whose payload matches what the server already has,
// and keeps at most one save in flight.
//
// A save that keeps failing moves the Syncer to SyncFailed without
// discarding the buffer, so the editor can surface the error and offer a
// manual retry via Flush.
type Syncer struct {
	saver  BlockSaver
	pageID models.PageID

	debounce   time.Duration
	retryDelay time.Duration
	maxTries   int

	mu        sync.Mutex
	buffer    []models.BlockInput
	dirty     bool
	saving    bool
	state     SyncState
	lastSaved string
	lastErr   error
	timer     *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// SyncerOption adjusts Syncer timing, mainly for tests.
type SyncerOption func(*Syncer)

// WithDebounce overrides the debounce window.
func WithDebounce(d time.Duration) SyncerOption {
	return func(s *Syncer) { s.debounce = d }
}

// WithRetry overrides the retry count and delay. tries is the total number
// of attempts per save, including the first.
func WithRetry(tries int, delay time.Duration) SyncerOption {
	return func(s *Syncer) {
		s.maxTries = tries
		s.retryDelay = delay
	}
}

// NewSyncer creates a Syncer for one page.
func NewSyncer(saver BlockSaver, pageID models.PageID, opts ...SyncerOption) *Syncer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Syncer{
		saver:      saver,
		pageID:     pageID,
		debounce:   DefaultDebounce,
		retryDelay: DefaultRetryDelay,
		maxTries:   DefaultMaxTries,
		state:      SyncIdle,
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// fingerprint serializes a block list for change comparison. Two payloads
// with the same fingerprint would produce identical reconcile requests.
func fingerprint(blocks []models.BlockInput) string {
	data, err := json.Marshal(blocks)
	if err != nil {
		return ""
	}
	return string(data)
}

// MarkLoaded records the state just fetched from the server so the first
// Queue after loading a page does not re-save unchanged content.
func (s *Syncer) MarkLoaded(blocks []*models.Block) {
	inputs := make([]models.BlockInput, len(blocks))
	for i, b := range blocks {
		inputs[i] = models.BlockInput{
			ClientID:   b.ClientID,
			Type:       b.Type,
			Content:    b.Content,
			Properties: b.Properties,
			Position:   b.Position,
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSaved = fingerprint(inputs)
}

// Queue replaces the buffered block list and schedules a save after the
// debounce window. Repeated calls within the window coalesce into one
// save. After SyncFailed the buffer still updates but nothing is scheduled
// until Flush.
func (s *Syncer) Queue(blocks []models.BlockInput) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffer = append([]models.BlockInput(nil), blocks...)
	s.dirty = true
	if s.state == SyncFailed {
		return
	}
	if !s.saving {
		s.state = SyncPending
	}
	if s.timer == nil {
		s.timer = time.AfterFunc(s.debounce, s.timerFired)
	} else {
		s.timer.Reset(s.debounce)
	}
}

func (s *Syncer) timerFired() {
	s.mu.Lock()
	if s.saving || s.state == SyncFailed || s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.startSaveLocked()
	s.mu.Unlock()
}

// startSaveLocked launches the save goroutine. Caller holds s.mu.
func (s *Syncer) startSaveLocked() {
	payload := append([]models.BlockInput(nil), s.buffer...)
	fp := fingerprint(payload)
	s.dirty = false

	if fp == s.lastSaved {
		s.state = SyncIdle
		return
	}

	s.saving = true
	s.state = SyncSaving
	s.wg.Add(1)
	go s.save(payload, fp)
}

func (s *Syncer) save(payload []models.BlockInput, fp string) {
	defer s.wg.Done()

	var lastErr error
	for attempt := 1; attempt <= s.maxTries; attempt++ {
		_, err := s.saver.ReconcileBlocks(s.ctx, s.pageID, payload)
		if err == nil {
			s.finishSave(fp, nil)
			return
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			// The server rejected the payload; retrying the same bytes
			// cannot succeed.
			break
		}
		if attempt < s.maxTries && !sleepCtx(s.ctx, s.retryDelay) {
			break
		}
	}
	s.finishSave(fp, lastErr)
}

func (s *Syncer) finishSave(fp string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saving = false
	s.lastErr = err
	if err != nil {
		s.state = SyncFailed
		return
	}

	s.lastSaved = fp
	if s.dirty {
		// Edits arrived while the save was in flight; save them next.
		s.startSaveLocked()
		return
	}
	s.state = SyncIdle
}

// Flush saves the buffer immediately, bypassing the debounce window. It
// also clears a SyncFailed state for a manual retry. Flush returns once
// the save settles.
func (s *Syncer) Flush() error {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return ErrSyncClosed
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.state == SyncFailed {
		s.state = SyncPending
		s.lastErr = nil
		s.dirty = true
	}
	if !s.saving && s.dirty {
		s.startSaveLocked()
	}
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// State returns the current sync state.
func (s *Syncer) State() SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Buffer returns a copy of the buffered block list. After SyncFailed this
// is the unsaved state the editor should not lose.
func (s *Syncer) Buffer() []models.BlockInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.BlockInput(nil), s.buffer...)
}

// LastError returns the error from the most recent settled save, nil on
// success.
func (s *Syncer) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Close stops the timer, cancels any in-flight save, and waits for the
// save goroutine to exit. Buffered edits are not flushed; call Flush first
// if they matter.
func (s *Syncer) Close() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

// sleepCtx waits for d unless the context ends first. It reports whether
// the full duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
