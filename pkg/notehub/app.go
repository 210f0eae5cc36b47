// Package notehub wires the notehub server together: configuration, store
// selection, the HTTP API, the realtime hub, and presence tracking.
package notehub

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/notehub-io/notehub/pkg/logger"
	"github.com/notehub-io/notehub/pkg/realtime"
	"github.com/notehub-io/notehub/pkg/store"
	"github.com/notehub-io/notehub/pkg/store/memory"
	"github.com/notehub-io/notehub/pkg/store/postgres"
	surrealstore "github.com/notehub-io/notehub/pkg/store/surrealdb"
)

// Storage backend names accepted by Config.StoreBackend.
const (
	BackendMemory    = "memory"
	BackendPostgres  = "postgres"
	BackendSurrealDB = "surrealdb"
)

// Config holds everything the server needs to start. Parse builds it from
// flags and environment variables.
type Config struct {
	StoreBackend string

	PostgresDSN string

	SurrealDBURL  string
	SurrealDBNS   string
	SurrealDBDB   string
	SurrealDBUser string
	SurrealDBPass string

	// JWTSecret signs session tokens. Empty means a random per-process
	// secret, which invalidates tokens across restarts.
	JWTSecret string

	// ReadOnly rejects all writes. Used while migrating between backends.
	ReadOnly bool

	ServerPort string
	LogPath    string
}

// App is the assembled server: one store, one hub, one presence tracker.
// The hub is owned by the App and passed down explicitly; nothing in the
// codebase reaches for a process-global instance.
type App struct {
	store    store.Store
	hub      *realtime.Hub
	presence *realtime.Presence
	auth     *authenticator
	config   *Config
	log      zerolog.Logger
	logData  *logger.LogData
	readOnly bool
}

// New builds an App from configuration, connecting to the selected store
// backend.
func New(config *Config) (*App, error) {
	logBuild := logger.New()
	if config.LogPath != "" {
		logBuild = logBuild.FromPath(config.LogPath)
	}
	logData, err := logBuild.Make()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	log := logData.Logger.With().Str("component", "notehub").Logger()

	var appStore store.Store
	switch config.StoreBackend {
	case BackendMemory:
		appStore = memory.NewMemoryStore()
		log.Info().Msg("using in-memory store")
	case BackendPostgres:
		appStore, err = postgres.NewPostgresStore(config.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		log.Info().Msg("connected to PostgreSQL")
	case BackendSurrealDB:
		appStore, err = surrealstore.NewSurrealStore(
			config.SurrealDBURL,
			config.SurrealDBNS,
			config.SurrealDBDB,
			config.SurrealDBUser,
			config.SurrealDBPass,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
		}
		log.Info().Msg("connected to SurrealDB")
	default:
		return nil, fmt.Errorf("unknown store backend: %q", config.StoreBackend)
	}

	auth, err := newAuthenticator(config.JWTSecret)
	if err != nil {
		return nil, err
	}

	app := &App{
		hub:      realtime.NewHub(log.With().Str("component", "hub").Logger()),
		presence: realtime.NewPresence(),
		auth:     auth,
		config:   config,
		log:      log,
		logData:  logData,
		readOnly: config.ReadOnly,
	}
	app.store = store.NewReadOnlyStore(appStore, app.IsReadOnly)

	return app, nil
}

// Close shuts down the hub and releases the store connection.
func (a *App) Close() error {
	a.hub.Close()
	var err error
	if a.store != nil {
		err = a.store.Close()
	}
	if cerr := a.logData.Close(); err == nil {
		err = cerr
	}
	return err
}

// Store returns the application's store, including the read-only wrapper.
func (a *App) Store() store.Store {
	return a.store
}

// Hub returns the application's broadcast hub.
func (a *App) Hub() *realtime.Hub {
	return a.hub
}

// SetReadOnly toggles runtime read-only mode.
func (a *App) SetReadOnly(readOnly bool) {
	a.readOnly = readOnly
	a.log.Info().Bool("read_only", readOnly).Msg("read-only mode changed")
}

// IsReadOnly reports the runtime read-only state.
func (a *App) IsReadOnly() bool {
	return a.readOnly
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
