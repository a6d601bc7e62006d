package domain

import (
	"context"
	"time"
)

// Script represents a generated narrative script
type Script struct {
	ID        int64
	Title     string
	Content   string
	CreatedAt time.Time
}

// ScriptRepository defines the interface for script storage operations
type ScriptRepository interface {
	// Create stores a new script
	Create(ctx context.Context, title, content string) (*Script, error)

	// Get retrieves a script by ID
	Get(ctx context.Context, id int64) (*Script, error)

	// List retrieves all scripts, newest first
	List(ctx context.Context) ([]*Script, error)

	// Count returns the total number of scripts
	Count(ctx context.Context) (int64, error)

	// Delete removes a script by ID
	Delete(ctx context.Context, id int64) error
}
