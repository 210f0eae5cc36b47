// Package client is a Go HTTP client for the notehub API. It mirrors the
// server's endpoints with strongly-typed methods, manages the bearer token
// after sign-in, and exposes HTTP failures as [*APIError] so callers can
// tell validation errors from transient server trouble.
//
// The package also contains the pieces a collaborative editor needs on top
// of the plain API: [Syncer] debounces and retries block saves, and
// [LiveSession] consumes the server's WebSocket event stream with echo
// suppression.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/notehub-io/notehub/pkg/models"
	"github.com/notehub-io/notehub/pkg/store"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: status=%d, body=%s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying the request might succeed. Client
// errors are permanent; server errors and read-only rejections are worth
// retrying.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusServiceUnavailable
}

// Client provides typed access to the notehub REST API. It is safe for
// concurrent use once authenticated; SetAuthToken and the sign-in methods
// must not race with in-flight requests.
type Client struct {
	baseURL    string
	httpClient *http.Client
	authToken  string
}

// NewClient creates an API client. baseURL includes protocol and host
// without a trailing slash, e.g. "http://localhost:8080".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetAuthToken sets the bearer token for subsequent requests.
func (c *Client) SetAuthToken(token string) {
	c.authToken = token
}

// AuthToken returns the current bearer token, empty before sign-in.
func (c *Client) AuthToken() string {
	return c.authToken
}

// BaseURL returns the server address the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	return c.httpClient.Do(req)
}

func decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if target != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Health checks the health status of the server.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// Authentication

// AuthResponse carries a session token and the signed-in user.
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// SignUp registers a new account and stores the returned token on the
// client.
func (c *Client) SignUp(ctx context.Context, email, name, password string) (*AuthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/auth/signup", map[string]string{
		"email":    email,
		"name":     name,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	var result AuthResponse
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	c.authToken = result.Token

	return &result, nil
}

// SignIn authenticates and stores the returned token on the client.
func (c *Client) SignIn(ctx context.Context, email, password string) (*AuthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/auth/signin", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	var result AuthResponse
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}
	c.authToken = result.Token

	return &result, nil
}

// CurrentUser returns the user the token belongs to.
func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/auth/me", nil)
	if err != nil {
		return nil, err
	}

	var result models.User
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// Workspace management

// CreateWorkspace creates a new workspace owned by the caller.
func (c *Client) CreateWorkspace(ctx context.Context, name, icon string) (*models.Workspace, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/workspaces", map[string]string{
		"name": name,
		"icon": icon,
	})
	if err != nil {
		return nil, err
	}

	var result models.Workspace
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// GetWorkspace retrieves a workspace by ID.
func (c *Client) GetWorkspace(ctx context.Context, id models.WorkspaceID) (*models.Workspace, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/workspaces/%s", id), nil)
	if err != nil {
		return nil, err
	}

	var result models.Workspace
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// DeleteWorkspace deletes a workspace. Owner only.
func (c *Client) DeleteWorkspace(ctx context.Context, id models.WorkspaceID) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/api/workspaces/%s", id), nil)
	if err != nil {
		return err
	}

	return decodeResponse(resp, nil)
}

// ListWorkspaces lists the caller's workspaces.
func (c *Client) ListWorkspaces(ctx context.Context) ([]*models.Workspace, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/workspaces", nil)
	if err != nil {
		return nil, err
	}

	var result []*models.Workspace
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// AddMember adds a user to a workspace.
func (c *Client) AddMember(ctx context.Context, workspaceID models.WorkspaceID, userID models.UserID, role models.MemberRole) (*models.WorkspaceMember, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/api/workspaces/%s/members", workspaceID), map[string]any{
		"user_id": userID,
		"role":    role,
	})
	if err != nil {
		return nil, err
	}

	var result models.WorkspaceMember
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// ListMembers lists a workspace's members.
func (c *Client) ListMembers(ctx context.Context, workspaceID models.WorkspaceID) ([]*models.WorkspaceMember, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/workspaces/%s/members", workspaceID), nil)
	if err != nil {
		return nil, err
	}

	var result []*models.WorkspaceMember
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// Page management

// CreatePageRequest is the input for CreatePage.
type CreatePageRequest struct {
	WorkspaceID  models.WorkspaceID `json:"workspace_id"`
	ParentPageID *models.PageID     `json:"parent_page_id,omitempty"`
	Title        string             `json:"title"`
	Icon         string             `json:"icon,omitempty"`
	Properties   models.JSONMap     `json:"properties,omitempty"`
}

// CreatePage creates a new page.
func (c *Client) CreatePage(ctx context.Context, req CreatePageRequest) (*models.Page, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/pages", req)
	if err != nil {
		return nil, err
	}

	var result models.Page
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// GetPage retrieves a page by ID.
func (c *Client) GetPage(ctx context.Context, id models.PageID) (*models.Page, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/pages/%s", id), nil)
	if err != nil {
		return nil, err
	}

	var result models.Page
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// UpdatePageRequest is a partial page update; nil fields stay untouched.
type UpdatePageRequest struct {
	Title      *string         `json:"title,omitempty"`
	Icon       *string         `json:"icon,omitempty"`
	CoverImage *string         `json:"cover_image,omitempty"`
	Properties *models.JSONMap `json:"properties,omitempty"`
}

// UpdatePage applies a partial update to a page.
func (c *Client) UpdatePage(ctx context.Context, id models.PageID, req UpdatePageRequest) (*models.Page, error) {
	resp, err := c.doRequest(ctx, http.MethodPut, fmt.Sprintf("/api/pages/%s", id), req)
	if err != nil {
		return nil, err
	}

	var result models.Page
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// DeletePage deletes a page.
func (c *Client) DeletePage(ctx context.Context, id models.PageID) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/api/pages/%s", id), nil)
	if err != nil {
		return err
	}

	return decodeResponse(resp, nil)
}

// ListPages lists all pages in a workspace.
func (c *Client) ListPages(ctx context.Context, workspaceID models.WorkspaceID) ([]*models.Page, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/workspaces/%s/pages", workspaceID), nil)
	if err != nil {
		return nil, err
	}

	var result []*models.Page
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// ReorderPages applies a batch of page moves atomically. Either every move
// lands or none do.
func (c *Client) ReorderPages(ctx context.Context, workspaceID models.WorkspaceID, moves []models.PageReorder) error {
	resp, err := c.doRequest(ctx, http.MethodPut, fmt.Sprintf("/api/workspaces/%s/pages/reorder", workspaceID), map[string]any{
		"moves": moves,
	})
	if err != nil {
		return err
	}

	return decodeResponse(resp, nil)
}

// Block management

// ListBlocks lists a page's blocks in position order.
func (c *Client) ListBlocks(ctx context.Context, pageID models.PageID) ([]*models.Block, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/pages/%s/blocks", pageID), nil)
	if err != nil {
		return nil, err
	}

	var result []*models.Block
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// ReconcileBlocks submits the complete desired block list for a page. The
// server diffs it against stored state in one transaction and returns the
// authoritative result. An empty list is a no-op on the server, never a
// mass delete.
func (c *Client) ReconcileBlocks(ctx context.Context, pageID models.PageID, blocks []models.BlockInput) (*store.ReconcileResult, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/api/pages/%s/blocks/reconcile", pageID), map[string]any{
		"blocks": blocks,
	})
	if err != nil {
		return nil, err
	}

	var result store.ReconcileResult
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// Presence

// ListPresence returns the users currently connected to a workspace.
func (c *Client) ListPresence(ctx context.Context, workspaceID models.WorkspaceID) ([]PresenceUser, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/api/workspaces/%s/presence", workspaceID), nil)
	if err != nil {
		return nil, err
	}

	var result []PresenceUser
	if err := decodeResponse(resp, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// PresenceUser is one user currently connected to a workspace.
type PresenceUser struct {
	UserID   models.UserID `json:"user_id"`
	UserName string        `json:"user_name"`
}
