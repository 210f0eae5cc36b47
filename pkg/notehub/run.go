package notehub

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Handler builds the full route table. Run serves it; tests mount it on an
// httptest.Server instead of binding a port.
func (a *App) Handler() http.Handler {
	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", a.handleHealth).Methods("GET")

	api.HandleFunc("/auth/signup", a.handleSignUp).Methods("POST")
	api.HandleFunc("/auth/signin", a.handleSignIn).Methods("POST")
	api.HandleFunc("/auth/me", a.requireAuth(a.handleGetCurrentUser)).Methods("GET")

	api.HandleFunc("/workspaces", a.requireAuth(a.handleCreateWorkspace)).Methods("POST")
	api.HandleFunc("/workspaces", a.requireAuth(a.handleListWorkspaces)).Methods("GET")
	api.HandleFunc("/workspaces/{id}", a.requireAuth(a.handleGetWorkspace)).Methods("GET")
	api.HandleFunc("/workspaces/{id}", a.requireAuth(a.handleUpdateWorkspace)).Methods("PUT")
	api.HandleFunc("/workspaces/{id}", a.requireAuth(a.handleDeleteWorkspace)).Methods("DELETE")
	api.HandleFunc("/workspaces/{id}/members", a.requireAuth(a.handleAddMember)).Methods("POST")
	api.HandleFunc("/workspaces/{id}/members", a.requireAuth(a.handleListMembers)).Methods("GET")
	api.HandleFunc("/workspaces/{id}/members/{userId}", a.requireAuth(a.handleRemoveMember)).Methods("DELETE")
	api.HandleFunc("/workspaces/{id}/presence", a.requireAuth(a.handleListPresence)).Methods("GET")

	api.HandleFunc("/pages", a.requireAuth(a.handleCreatePage)).Methods("POST")
	api.HandleFunc("/pages/{id}", a.requireAuth(a.handleGetPage)).Methods("GET")
	api.HandleFunc("/pages/{id}", a.requireAuth(a.handleUpdatePage)).Methods("PUT")
	api.HandleFunc("/pages/{id}", a.requireAuth(a.handleDeletePage)).Methods("DELETE")
	api.HandleFunc("/pages/{id}/children", a.requireAuth(a.handleListChildPages)).Methods("GET")
	api.HandleFunc("/workspaces/{workspaceId}/pages", a.requireAuth(a.handleListPages)).Methods("GET")
	api.HandleFunc("/workspaces/{workspaceId}/pages/reorder", a.requireAuth(a.handleReorderPages)).Methods("PUT")

	api.HandleFunc("/blocks", a.requireAuth(a.handleCreateBlock)).Methods("POST")
	api.HandleFunc("/blocks/{id}", a.requireAuth(a.handleGetBlock)).Methods("GET")
	api.HandleFunc("/blocks/{id}", a.requireAuth(a.handleUpdateBlock)).Methods("PUT")
	api.HandleFunc("/blocks/{id}", a.requireAuth(a.handleDeleteBlock)).Methods("DELETE")
	api.HandleFunc("/pages/{pageId}/blocks", a.requireAuth(a.handleListBlocks)).Methods("GET")
	api.HandleFunc("/pages/{pageId}/blocks/reconcile", a.requireAuth(a.handleReconcileBlocks)).Methods("POST")

	api.HandleFunc("/permissions", a.requireAuth(a.handleCreatePermission)).Methods("POST")
	api.HandleFunc("/permissions/mine", a.requireAuth(a.handleListMyPermissions)).Methods("GET")
	api.HandleFunc("/permissions", a.requireAuth(a.handleListPermissions)).Methods("GET")
	api.HandleFunc("/permissions/{id}", a.requireAuth(a.handleDeletePermission)).Methods("DELETE")

	api.HandleFunc("/ws", a.requireAuth(a.handleWebSocket)).Methods("GET")

	// Health check route (outside of /api prefix)
	router.HandleFunc("/health", a.handleHealth).Methods("GET")

	return router
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the listener fails.
//
// # API Endpoints
//
// Health check:
//
//	GET  /api/health                                   - Service health status
//
// Authentication:
//
//	POST /api/auth/signup                              - Register new user account
//	POST /api/auth/signin                              - Authenticate, returns a bearer token
//	GET  /api/auth/me                                  - Current authenticated user
//
// Workspaces and membership:
//
//	POST   /api/workspaces                             - Create workspace (caller becomes owner)
//	GET    /api/workspaces                             - List caller's workspaces
//	GET    /api/workspaces/{id}                        - Get workspace
//	PUT    /api/workspaces/{id}                        - Update workspace
//	DELETE /api/workspaces/{id}                        - Delete workspace (owner only)
//	POST   /api/workspaces/{id}/members                - Add member
//	GET    /api/workspaces/{id}/members                - List members
//	DELETE /api/workspaces/{id}/members/{userId}       - Remove member (owner only)
//	GET    /api/workspaces/{id}/presence               - Users currently connected
//
// Pages:
//
//	POST   /api/pages                                  - Create page
//	GET    /api/pages/{id}                             - Get page
//	PUT    /api/pages/{id}                             - Update page (partial)
//	DELETE /api/pages/{id}                             - Delete page
//	GET    /api/pages/{id}/children                    - List a page's child pages
//	GET    /api/workspaces/{workspaceId}/pages         - List workspace pages
//	PUT    /api/workspaces/{workspaceId}/pages/reorder - Batch move pages, all or nothing
//
// Blocks:
//
//	POST   /api/blocks                                 - Create block
//	GET    /api/blocks/{id}                            - Get block
//	PUT    /api/blocks/{id}                            - Update block (partial)
//	DELETE /api/blocks/{id}                            - Delete block (idempotent)
//	GET    /api/pages/{pageId}/blocks                  - List page blocks in position order
//	POST   /api/pages/{pageId}/blocks/reconcile        - Apply client's full block list transactionally
//
// Permissions:
//
//	POST   /api/permissions                            - Share a workspace or page with a user
//	GET    /api/permissions                            - List grants on a resource
//	GET    /api/permissions/mine                       - List caller's grants
//	DELETE /api/permissions/{id}                       - Revoke a grant
//
// Realtime:
//
//	GET /api/ws?workspace={id}                         - WebSocket event stream
//
// Writes publish events to the realtime hub only after the store commit, so
// subscribers never observe a change that later rolled back. On graceful
// shutdown the server allows up to 5 seconds for in-flight requests, then
// closes the hub which terminates open WebSocket sessions.
func (a *App) Run(ctx context.Context, cmd *RunCommand) error {
	addr := fmt.Sprintf(":%s", a.config.ServerPort)
	a.log.Info().Str("addr", addr).Str("store", a.config.StoreBackend).Msg("starting notehub server")

	server := &http.Server{
		Addr:    addr,
		Handler: a.Handler(),
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		a.hub.Close()
		return err
	case err := <-serverErr:
		return err
	}
}
