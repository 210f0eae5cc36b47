package notehub

import (
	"context"
	"fmt"

	"github.com/notehub-io/notehub/pkg/store"
)

// Main is the entry point for the notehub application. It parses arguments,
// builds the App, and executes the requested command. Tests call it
// directly instead of building the binary; the context cancels the server
// for graceful shutdown.
func Main(ctx context.Context, args []string) error {
	cmd, config, err := Parse(args)
	if err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	app, err := New(config)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer app.Close()

	switch c := cmd.(type) {
	case *MigrateCommand:
		if err := app.Migrate(ctx, c); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	case *RunCommand:
		if err := app.Run(ctx, c); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	default:
		return fmt.Errorf("unknown command type: %T", cmd)
	}

	return nil
}

// Migrate creates or updates the store schema. Schema changes are not data
// writes, so migration bypasses the read-only wrapper and works while the
// API is read-only.
func (a *App) Migrate(ctx context.Context, cmd *MigrateCommand) error {
	a.log.Info().Str("backend", a.config.StoreBackend).Msg("running migrations")
	if ro, ok := a.store.(*store.ReadOnlyStore); ok {
		return ro.Unwrap().Migrate(ctx)
	}
	return a.store.Migrate(ctx)
}
