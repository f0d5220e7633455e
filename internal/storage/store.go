package storage

import (
	"context"

	_ "github.com/mattn/go-sqlite3"
	"github.com/roman-kulish/sniper-scope/internal/scope"
)

// Store provides an interface for managing sniper scope configurations.
// All operations that write to the database should be considered atomic.
type Store interface {
	// CreateScope stores a new scope and returns it as persisted.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - s: Scope to store. When s.ID is empty a new identifier is generated
	//
	// Returns:
	//   - scope: Stored scope including its identifier and creation time
	//   - error: If the scope already exists, storage fails or context is cancelled
	CreateScope(ctx context.Context, s *scope.Scope) (*scope.Scope, error)

	// Scope retrieves a specific scope by its ID.
	//
	// Returns an error wrapping scope.ErrNotFound if there is no such scope.
	Scope(ctx context.Context, id string) (*scope.Scope, error)

	// Scopes returns all scopes ordered by creation time in ascending order.
	Scopes(ctx context.Context) ([]*scope.Scope, error)

	// Close releases all database connections and resources.
	// It is safe to call Close multiple times.
	Close() error
}

var _ Store = (*SqliteStore)(nil)
