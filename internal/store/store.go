package store

import (
	"context"
	"time"
)

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Action embeddings (durable vector cache, keyed by action name).
	// ReplaceEmbeddings atomically discards every stored vector and inserts
	// the given set, so stale entries never survive a registry change.
	ReplaceEmbeddings(ctx context.Context, model string, entries []StoredEmbedding) error
	ListEmbeddings(ctx context.Context, model string) ([]StoredEmbedding, error)

	// Resolution log (append-only audit trail).
	AppendResolution(ctx context.Context, res *Resolution) error
	ListResolutions(ctx context.Context, sessionID string, limit int) ([]*Resolution, error)

	// Maintenance.
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle.
	Close() error
}

// StoredEmbedding is one persisted (action name, vector) index entry.
type StoredEmbedding struct {
	Name       string
	Descriptor string
	Model      string
	Vector     []float32
	UpdatedAt  time.Time
}

// Resolution records one resolve-and-dispatch attempt.
type Resolution struct {
	ID          int64
	RequestID   string
	SessionID   string
	Prompt      string
	Action      string // "" when no action matched
	Distance    float64
	Matched     bool
	OutcomeCode string // error code, "" on success
	CreatedAt   time.Time
}
