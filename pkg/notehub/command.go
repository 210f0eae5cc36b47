package notehub

// Command represents one discrete application operation with its options.
// Parse produces a Command plus a Config; Main routes each command to the
// matching App method. Separating the two keeps flag handling out of the
// application layer and makes commands easy to drive from tests.
type Command interface {
	// Name returns the CLI sub-command name used for routing.
	Name() string
}

// MigrateCommand creates or updates the store schema. It is idempotent:
// running it repeatedly only adds missing schema elements and never drops
// data. The SurrealDB backend reduces it to a no-op since tables are
// created on first insert.
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string { return "migrate" }

// RunCommand starts the HTTP server: the REST API under /api and the
// realtime WebSocket endpoint at /api/ws.
type RunCommand struct{}

func (c *RunCommand) Name() string { return "run" }
