package notehub

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/notehub-io/notehub/pkg/models"
)

// publish sends an event to a topic after the triggering write has
// committed. A publish failure only loses a notification, never data, so
// it is logged rather than surfaced to the client.
func (a *App) publish(topic string, event models.Event) {
	if err := a.hub.Publish(topic, event); err != nil {
		a.log.Error().Err(err).Str("topic", topic).Msg("failed to publish event")
	}
}

// requireMember loads the caller's membership in a workspace. It writes
// the error response and returns ok=false when the caller is not a member,
// or is a viewer attempting a write.
func (a *App) requireMember(w http.ResponseWriter, r *http.Request, workspaceID models.WorkspaceID, write bool) (*models.User, *models.WorkspaceMember, bool) {
	user := currentUser(r)
	member, err := a.store.GetMember(r.Context(), workspaceID, user.ID)
	if err != nil {
		a.respondStoreError(w, err)
		return nil, nil, false
	}
	if member == nil {
		respondError(w, http.StatusForbidden, "not a workspace member")
		return nil, nil, false
	}
	if write && !member.Role.CanWrite() {
		respondError(w, http.StatusForbidden, "workspace role does not permit writes")
		return nil, nil, false
	}
	return user, member, true
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Workspace handlers

// CreateWorkspaceRequest is the payload for POST /api/workspaces.
type CreateWorkspaceRequest struct {
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

func (a *App) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "workspace name is required")
		return
	}

	user := currentUser(r)
	workspace := &models.Workspace{
		Name:    req.Name,
		Icon:    req.Icon,
		OwnerID: user.ID,
	}
	if err := a.store.CreateWorkspace(r.Context(), workspace); err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, workspace)
}

func (a *App) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseWorkspaceID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, _, ok := a.requireMember(w, r, id, false); !ok {
		return
	}
	workspace, err := a.store.GetWorkspace(r.Context(), id)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	if workspace == nil {
		respondError(w, http.StatusNotFound, "workspace not found")
		return
	}
	respondJSON(w, http.StatusOK, workspace)
}

func (a *App) handleUpdateWorkspace(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseWorkspaceID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, _, ok := a.requireMember(w, r, id, true); !ok {
		return
	}
	workspace, err := a.store.GetWorkspace(r.Context(), id)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	if workspace == nil {
		respondError(w, http.StatusNotFound, "workspace not found")
		return
	}

	var req CreateWorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name != "" {
		workspace.Name = req.Name
	}
	if req.Icon != "" {
		workspace.Icon = req.Icon
	}
	if err := a.store.UpdateWorkspace(r.Context(), workspace); err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, workspace)
}

func (a *App) handleDeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseWorkspaceID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	_, member, ok := a.requireMember(w, r, id, true)
	if !ok {
		return
	}
	if member.Role != models.RoleOwner {
		respondError(w, http.StatusForbidden, "only the owner can delete a workspace")
		return
	}
	if err := a.store.DeleteWorkspace(r.Context(), id); err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *App) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	workspaces, err := a.store.ListWorkspaces(r.Context(), user.ID)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, workspaces)
}

// Membership handlers

// AddMemberRequest is the payload for POST /api/workspaces/{id}/members.
type AddMemberRequest struct {
	UserID models.UserID     `json:"user_id"`
	Role   models.MemberRole `json:"role"`
}

func (a *App) handleAddMember(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseWorkspaceID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, _, ok := a.requireMember(w, r, id, true); !ok {
		return
	}
	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch req.Role {
	case models.RoleEditor, models.RoleViewer:
	default:
		respondError(w, http.StatusBadRequest, "role must be editor or viewer")
		return
	}
	member := &models.WorkspaceMember{
		WorkspaceID: id,
		UserID:      req.UserID,
		Role:        req.Role,
	}
	if err := a.store.AddMember(r.Context(), member); err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, member)
}

func (a *App) handleListMembers(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseWorkspaceID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, _, ok := a.requireMember(w, r, id, false); !ok {
		return
	}
	members, err := a.store.ListMembers(r.Context(), id)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, members)
}

func (a *App) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := models.ParseWorkspaceID(vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID, err := models.ParseUserID(vars["userId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	_, member, ok := a.requireMember(w, r, id, true)
	if !ok {
		return
	}
	if member.Role != models.RoleOwner {
		respondError(w, http.StatusForbidden, "only the owner can remove members")
		return
	}
	target, err := a.store.GetMember(r.Context(), id, userID)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	if target != nil && target.Role == models.RoleOwner {
		respondError(w, http.StatusBadRequest, "cannot remove the workspace owner")
		return
	}
	if err := a.store.RemoveMember(r.Context(), id, userID); err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *App) handleListPresence(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseWorkspaceID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, _, ok := a.requireMember(w, r, id, false); !ok {
		return
	}
	respondJSON(w, http.StatusOK, a.presence.List(id))
}

// Page handlers

// CreatePageRequest is the payload for POST /api/pages.
type CreatePageRequest struct {
	WorkspaceID  models.WorkspaceID `json:"workspace_id"`
	ParentPageID *models.PageID     `json:"parent_page_id,omitempty"`
	Title        string             `json:"title"`
	Icon         string             `json:"icon,omitempty"`
	Properties   models.JSONMap     `json:"properties,omitempty"`
}

// UpdatePageRequest is the payload for PUT /api/pages/{id}. Nil fields are
// left untouched, so a title rename does not clobber a concurrent icon
// change.
type UpdatePageRequest struct {
	Title      *string         `json:"title,omitempty"`
	Icon       *string         `json:"icon,omitempty"`
	CoverImage *string         `json:"cover_image,omitempty"`
	Properties *models.JSONMap `json:"properties,omitempty"`
}

func (a *App) handleCreatePage(w http.ResponseWriter, r *http.Request) {
	var req CreatePageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.WorkspaceID.IsZero() {
		respondError(w, http.StatusBadRequest, "workspace_id is required")
		return
	}
	user, _, ok := a.requireMember(w, r, req.WorkspaceID, true)
	if !ok {
		return
	}

	page := &models.Page{
		WorkspaceID:  req.WorkspaceID,
		ParentPageID: req.ParentPageID,
		Title:        req.Title,
		Icon:         req.Icon,
		Properties:   req.Properties,
		CreatedBy:    user.ID,
	}
	if err := a.store.CreatePage(r.Context(), page); err != nil {
		a.respondStoreError(w, err)
		return
	}

	ev := models.NewEvent(models.EventPageCreated, page.WorkspaceID, user.ID, user.Name)
	ev.Page = &models.PagePayload{
		PageID:       page.ID,
		ParentPageID: page.ParentPageID,
		Title:        page.Title,
		SortOrder:    page.SortOrder,
	}
	a.publish(models.WorkspaceTopic(page.WorkspaceID), ev)

	respondJSON(w, http.StatusCreated, page)
}

// getPageForRequest parses the page ID var, loads the page, and checks
// workspace membership. Returns nil after writing the response on any
// failure.
func (a *App) getPageForRequest(w http.ResponseWriter, r *http.Request, write bool) (*models.User, *models.Page) {
	id, err := models.ParsePageID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return nil, nil
	}
	page, err := a.store.GetPage(r.Context(), id)
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

func (a *App) handleGetPage(w http.ResponseWriter, r *http.Request) {
	_, page := a.getPageForRequest(w, r, false)
	if page == nil {
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (a *App) handleUpdatePage(w http.ResponseWriter, r *http.Request) {
	user, page := a.getPageForRequest(w, r, true)
	if page == nil {
		return
	}

	var req UpdatePageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Title != nil {
		page.Title = *req.Title
	}
	if req.Icon != nil {
		page.Icon = *req.Icon
	}
	if req.CoverImage != nil {
		page.CoverImage = *req.CoverImage
	}
	if req.Properties != nil {
		page.Properties = *req.Properties
	}
	page.LastEditedBy = &user.ID

	if err := a.store.UpdatePage(r.Context(), page); err != nil {
		a.respondStoreError(w, err)
		return
	}

	ev := models.NewEvent(models.EventPageUpdated, page.WorkspaceID, user.ID, user.Name)
	ev.Page = &models.PagePayload{
		PageID:       page.ID,
		ParentPageID: page.ParentPageID,
		Title:        page.Title,
		SortOrder:    page.SortOrder,
	}
	a.publish(models.WorkspaceTopic(page.WorkspaceID), ev)

	respondJSON(w, http.StatusOK, page)
}

func (a *App) handleDeletePage(w http.ResponseWriter, r *http.Request) {
	user, page := a.getPageForRequest(w, r, true)
	if page == nil {
		return
	}
	if err := a.store.DeletePage(r.Context(), page.ID); err != nil {
		a.respondStoreError(w, err)
		return
	}

	ev := models.NewEvent(models.EventPageDeleted, page.WorkspaceID, user.ID, user.Name)
	ev.Page = &models.PagePayload{PageID: page.ID}
	a.publish(models.WorkspaceTopic(page.WorkspaceID), ev)

	respondJSON(w, http.StatusNoContent, nil)
}

func (a *App) handleListPages(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseWorkspaceID(mux.Vars(r)["workspaceId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, _, ok := a.requireMember(w, r, id, false); !ok {
		return
	}
	pages, err := a.store.ListPages(r.Context(), id)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, pages)
}

func (a *App) handleListChildPages(w http.ResponseWriter, r *http.Request) {
	_, page := a.getPageForRequest(w, r, false)
	if page == nil {
		return
	}
	children, err := a.store.ListChildPages(r.Context(), page.ID)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, children)
}

// ReorderPagesRequest is the payload for PUT
// /api/workspaces/{workspaceId}/pages/reorder.
type ReorderPagesRequest struct {
	Moves []models.PageReorder `json:"moves"`
}

func (a *App) handleReorderPages(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseWorkspaceID(mux.Vars(r)["workspaceId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, _, ok := a.requireMember(w, r, id, true)
	if !ok {
		return
	}
	var req ReorderPagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.store.ReorderPages(r.Context(), id, req.Moves); err != nil {
		a.respondStoreError(w, err)
		return
	}

	if len(req.Moves) > 0 {
		pageIDs := make([]models.PageID, len(req.Moves))
		for i, mv := range req.Moves {
			pageIDs[i] = mv.PageID
		}
		ev := models.NewEvent(models.EventPagesReordered, id, user.ID, user.Name)
		ev.Reorder = &models.ReorderPayload{PageIDs: pageIDs}
		a.publish(models.WorkspaceTopic(id), ev)
	}

	respondJSON(w, http.StatusNoContent, nil)
}
