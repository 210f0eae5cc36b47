package notehub

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/notehub-io/notehub/pkg/models"
)

// CreateBlockRequest is the payload for POST /api/blocks.
type CreateBlockRequest struct {
	PageID        models.PageID    `json:"page_id"`
	ParentBlockID *models.BlockID  `json:"parent_block_id,omitempty"`
	ClientID      string           `json:"client_id"`
	Type          models.BlockType `json:"type"`
	Content       models.JSONMap   `json:"content"`
	Properties    models.JSONMap   `json:"properties,omitempty"`
	Position      int              `json:"position"`
}

// UpdateBlockRequest is the payload for PUT /api/blocks/{id}. Nil fields
// are left untouched.
type UpdateBlockRequest struct {
	Type       *models.BlockType `json:"type,omitempty"`
	Content    *models.JSONMap   `json:"content,omitempty"`
	Properties *models.JSONMap   `json:"properties,omitempty"`
	Position   *int              `json:"position,omitempty"`
}

// ReconcileBlocksRequest is the payload for POST
// /api/pages/{pageId}/blocks/reconcile. Blocks is the client's complete
// desired state for the page.
type ReconcileBlocksRequest struct {
	Blocks []models.BlockInput `json:"blocks"`
}

// pageScope resolves a page and checks the caller's membership in its
// workspace. Used by block handlers, which authorize through the page they
// touch.
func (a *App) pageScope(w http.ResponseWriter, r *http.Request, pageID models.PageID, write bool) (*models.User, *models.Page) {
	page, err := a.store.GetPage(r.Context(), pageID)
	if err != nil {
		a.respondStoreError(w, err)
		return nil, nil
	}
	if page == nil {
		respondError(w, http.StatusNotFound, "page not found")
		return nil, nil
	}
	user, _, ok := a.requireMember(w, r, page.WorkspaceID, write)
	if !ok {
		return nil, nil
	}
	return user, page
}

func (a *App) handleCreateBlock(w http.ResponseWriter, r *http.Request) {
	var req CreateBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ClientID == "" {
		respondError(w, http.StatusBadRequest, "client_id is required")
		return
	}
	user, page := a.pageScope(w, r, req.PageID, true)
	if page == nil {
		return
	}

	block := &models.Block{
		PageID:        req.PageID,
		ParentBlockID: req.ParentBlockID,
		ClientID:      req.ClientID,
		Type:          req.Type,
		Content:       req.Content,
		Properties:    req.Properties,
		Position:      req.Position,
	}
	if err := a.store.CreateBlock(r.Context(), block); err != nil {
		a.respondStoreError(w, err)
		return
	}

	ev := models.NewEvent(models.EventBlockCreated, page.WorkspaceID, user.ID, user.Name)
	ev.Block = &models.BlockPayload{
		PageID:   block.PageID,
		BlockID:  block.ID,
		ClientID: block.ClientID,
		Position: block.Position,
		Block:    block,
	}
	a.publish(models.PageTopic(page.WorkspaceID, page.ID), ev)

	respondJSON(w, http.StatusCreated, block)
}

func (a *App) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseBlockID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	block, err := a.store.GetBlock(r.Context(), id)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	if block == nil {
		respondError(w, http.StatusNotFound, "block not found")
		return
	}
	if _, page := a.pageScope(w, r, block.PageID, false); page == nil {
		return
	}
	respondJSON(w, http.StatusOK, block)
}

func (a *App) handleUpdateBlock(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseBlockID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	block, err := a.store.GetBlock(r.Context(), id)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	if block == nil {
		respondError(w, http.StatusNotFound, "block not found")
		return
	}
	user, page := a.pageScope(w, r, block.PageID, true)
	if page == nil {
		return
	}

	var req UpdateBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Type != nil {
		block.Type = *req.Type
	}
	if req.Content != nil {
		block.Content = *req.Content
	}
	if req.Properties != nil {
		block.Properties = *req.Properties
	}
	if req.Position != nil {
		block.Position = *req.Position
	}
	if err := a.store.UpdateBlock(r.Context(), block); err != nil {
		a.respondStoreError(w, err)
		return
	}

	ev := models.NewEvent(models.EventBlockUpdated, page.WorkspaceID, user.ID, user.Name)
	ev.Block = &models.BlockPayload{
		PageID:   block.PageID,
		BlockID:  block.ID,
		ClientID: block.ClientID,
		Position: block.Position,
		Block:    block,
	}
	a.publish(models.PageTopic(page.WorkspaceID, page.ID), ev)

	respondJSON(w, http.StatusOK, block)
}

func (a *App) handleDeleteBlock(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseBlockID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	block, err := a.store.GetBlock(r.Context(), id)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	if block == nil {
		// Deleting an already-deleted block succeeds.
		respondJSON(w, http.StatusNoContent, nil)
		return
	}
	user, page := a.pageScope(w, r, block.PageID, true)
	if page == nil {
		return
	}
	if err := a.store.DeleteBlock(r.Context(), id); err != nil {
		a.respondStoreError(w, err)
		return
	}

	ev := models.NewEvent(models.EventBlockDeleted, page.WorkspaceID, user.ID, user.Name)
	ev.Block = &models.BlockPayload{
		PageID:   block.PageID,
		BlockID:  block.ID,
		ClientID: block.ClientID,
		Position: block.Position,
	}
	a.publish(models.PageTopic(page.WorkspaceID, page.ID), ev)

	respondJSON(w, http.StatusNoContent, nil)
}

func (a *App) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	pageID, err := models.ParsePageID(mux.Vars(r)["pageId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, page := a.pageScope(w, r, pageID, false); page == nil {
		return
	}
	blocks, err := a.store.ListBlocks(r.Context(), pageID)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, blocks)
}

// handleReconcileBlocks applies the client's full block list for a page in
// one store transaction and broadcasts the authoritative result. An empty
// list is a no-op rather than a mass delete; the current list is returned
// and no event is published.
func (a *App) handleReconcileBlocks(w http.ResponseWriter, r *http.Request) {
	pageID, err := models.ParsePageID(mux.Vars(r)["pageId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, page := a.pageScope(w, r, pageID, true)
	if page == nil {
		return
	}

	var req ReconcileBlocksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := a.store.ReconcileBlocks(r.Context(), pageID, req.Blocks)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}

	if result.Created+result.Updated+result.Deleted > 0 {
		ev := models.NewEvent(models.EventBlocksReconciled, page.WorkspaceID, user.ID, user.Name)
		ev.Reconcile = &models.ReconcilePayload{
			PageID:  pageID,
			Created: result.Created,
			Updated: result.Updated,
			Deleted: result.Deleted,
			Blocks:  result.Blocks,
		}
		a.publish(models.PageTopic(page.WorkspaceID, page.ID), ev)
	}

	respondJSON(w, http.StatusOK, result)
}
