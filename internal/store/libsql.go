package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/intentd/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB for advanced usage.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Action embeddings ---

// ReplaceEmbeddings deletes every stored vector and inserts the given set in
// one transaction, so readers only ever observe the old or the new catalog.
func (s *LibSQLStore) ReplaceEmbeddings(ctx context.Context, model string, entries []StoredEmbedding) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "begin replace embeddings: %v", err).WithCause(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM action_embeddings`); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "clear embeddings: %v", err).WithCause(err)
	}

	now := time.Now().UTC()
	for _, e := range entries {
		updatedAt := e.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = now
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO action_embeddings (name, descriptor, model, dimensions, vector, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			e.Name, e.Descriptor, model, len(e.Vector), encodeVector(e.Vector), updatedAt,
		); err != nil {
			return schema.NewErrorf(schema.ErrCodeStore, "insert embedding %q: %v", e.Name, err).WithCause(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "commit replace embeddings: %v", err).WithCause(err)
	}
	return nil
}

// ListEmbeddings returns all stored vectors for the given model, ordered by
// action name.
func (s *LibSQLStore) ListEmbeddings(ctx context.Context, model string) ([]StoredEmbedding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, descriptor, model, vector, updated_at
		 FROM action_embeddings WHERE model = ? ORDER BY name`, model)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list embeddings: %v", err).WithCause(err)
	}
	defer rows.Close()

	var entries []StoredEmbedding
	for rows.Next() {
		var e StoredEmbedding
		var blob []byte
		if err := rows.Scan(&e.Name, &e.Descriptor, &e.Model, &blob, &e.UpdatedAt); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore, "scan embedding: %v", err).WithCause(err)
		}
		vec, decErr := decodeVector(blob)
		if decErr != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore, "decode embedding %q: %v", e.Name, decErr).WithCause(decErr)
		}
		e.Vector = vec
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "iterate embeddings: %v", err).WithCause(err)
	}
	return entries, nil
}

// --- Resolution log ---

// AppendResolution inserts one resolution record.
func (s *LibSQLStore) AppendResolution(ctx context.Context, res *Resolution) error {
	createdAt := res.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	matched := 0
	if res.Matched {
		matched = 1
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO resolutions (request_id, session_id, prompt, action, distance, matched, outcome_code, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		nullStr(res.RequestID), res.SessionID, res.Prompt, nullStr(res.Action),
		res.Distance, matched, nullStr(res.OutcomeCode), createdAt,
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "append resolution: %v", err).WithCause(err)
	}
	if id, idErr := result.LastInsertId(); idErr == nil {
		res.ID = id
	}
	res.CreatedAt = createdAt
	return nil
}

// ListResolutions returns the most recent resolutions for a session, oldest
// first, up to limit (0 means no limit).
func (s *LibSQLStore) ListResolutions(ctx context.Context, sessionID string, limit int) ([]*Resolution, error) {
	query := `SELECT id, request_id, session_id, prompt, action, distance, matched, outcome_code, created_at
	          FROM resolutions WHERE session_id = ? ORDER BY id`
	args := []any{sessionID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list resolutions: %v", err).WithCause(err)
	}
	defer rows.Close()

	var out []*Resolution
	for rows.Next() {
		r := &Resolution{}
		var requestID, action, outcomeCode sql.NullString
		var distance sql.NullFloat64
		var matched int
		if err := rows.Scan(&r.ID, &requestID, &r.SessionID, &r.Prompt, &action,
			&distance, &matched, &outcomeCode, &r.CreatedAt); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore, "scan resolution: %v", err).WithCause(err)
		}
		r.RequestID = requestID.String
		r.Action = action.String
		r.Distance = distance.Float64
		r.Matched = matched != 0
		r.OutcomeCode = outcomeCode.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "iterate resolutions: %v", err).WithCause(err)
	}
	return out, nil
}

// nullStr converts "" to NULL.
func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ Store = (*LibSQLStore)(nil)
