package notehub

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/notehub-io/notehub/pkg/models"
)

// SharePermissionRequest is the payload for POST /api/permissions. It
// grants a user direct access to a workspace or page, independent of
// workspace membership.
type SharePermissionRequest struct {
	ResourceType models.ResourceType    `json:"resource_type"`
	WorkspaceID  *models.WorkspaceID    `json:"workspace_id,omitempty"`
	PageID       *models.PageID         `json:"page_id,omitempty"`
	UserID       models.UserID          `json:"user_id"`
	Level        models.PermissionLevel `json:"permission_level"`
}

// resourceWorkspace maps a share request to the workspace that governs it,
// so the caller's role can be checked. Page shares are governed by the
// page's workspace.
func (a *App) resourceWorkspace(w http.ResponseWriter, r *http.Request, req SharePermissionRequest) (models.WorkspaceID, models.ResourceID, bool) {
	switch req.ResourceType {
	case models.ResourceWorkspace:
		if req.WorkspaceID == nil {
			respondError(w, http.StatusBadRequest, "workspace_id is required for workspace shares")
			return models.WorkspaceID{}, models.ResourceID{}, false
		}
		return *req.WorkspaceID, models.NewResourceIDForWorkspace(*req.WorkspaceID), true
	case models.ResourcePage:
		if req.PageID == nil {
			respondError(w, http.StatusBadRequest, "page_id is required for page shares")
			return models.WorkspaceID{}, models.ResourceID{}, false
		}
		page, err := a.store.GetPage(r.Context(), *req.PageID)
		if err != nil {
			a.respondStoreError(w, err)
			return models.WorkspaceID{}, models.ResourceID{}, false
		}
		if page == nil {
			respondError(w, http.StatusNotFound, "page not found")
			return models.WorkspaceID{}, models.ResourceID{}, false
		}
		return page.WorkspaceID, models.NewResourceIDForPage(*req.PageID), true
	default:
		respondError(w, http.StatusBadRequest, "resource_type must be workspace or page")
		return models.WorkspaceID{}, models.ResourceID{}, false
	}
}

func (a *App) handleCreatePermission(w http.ResponseWriter, r *http.Request) {
	var req SharePermissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch req.Level {
	case models.PermissionRead, models.PermissionWrite, models.PermissionAdmin:
	default:
		respondError(w, http.StatusBadRequest, "permission_level must be read, write, or admin")
		return
	}
	workspaceID, resourceID, ok := a.resourceWorkspace(w, r, req)
	if !ok {
		return
	}
	if _, _, ok := a.requireMember(w, r, workspaceID, true); !ok {
		return
	}

	permission := &models.Permission{
		ResourceType:    req.ResourceType,
		ResourceID:      resourceID,
		UserID:          req.UserID,
		PermissionLevel: req.Level,
	}
	if err := a.store.CreatePermission(r.Context(), permission); err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, permission)
}

func (a *App) handleListPermissions(w http.ResponseWriter, r *http.Request) {
	var req SharePermissionRequest
	req.ResourceType = models.ResourceType(r.URL.Query().Get("resource_type"))
	if wid := r.URL.Query().Get("workspace_id"); wid != "" {
		id, err := models.ParseWorkspaceID(wid)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.WorkspaceID = &id
	}
	if pid := r.URL.Query().Get("page_id"); pid != "" {
		id, err := models.ParsePageID(pid)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.PageID = &id
	}
	workspaceID, resourceID, ok := a.resourceWorkspace(w, r, req)
	if !ok {
		return
	}
	if _, _, ok := a.requireMember(w, r, workspaceID, false); !ok {
		return
	}
	permissions, err := a.store.GetPermissions(r.Context(), req.ResourceType, resourceID)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, permissions)
}

func (a *App) handleListMyPermissions(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	permissions, err := a.store.GetUserPermissions(r.Context(), user.ID)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, permissions)
}

func (a *App) handleDeletePermission(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParsePermissionID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.store.DeletePermission(r.Context(), id); err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
