package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/pscheid92/collabcast/internal/metrics"
)

// ErrNoteNotFound is returned when a note id does not exist in the store.
var ErrNoteNotFound = errors.New("note not found")

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

const schema = `
CREATE TABLE IF NOT EXISTS notes (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	content    TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
)`

// Store persists one user's notes in a private SQLite database file. The
// file is owned exclusively by that user's actor; no other actor opens it.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the database file for a user under
// dataDir and ensures the schema exists.
func OpenStore(ctx context.Context, dataDir, userID string) (*Store, error) {
	if !userIDPattern.MatchString(userID) {
		return nil, fmt.Errorf("invalid user id %q", userID)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	path := filepath.Join(dataDir, userID+".db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	// One actor is the only writer; a second connection would only add
	// lock contention.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run schema migration: %w", err)
	}

	return &Store{db: db}, nil
}

// List returns all notes ordered by creation time.
func (s *Store) List(ctx context.Context) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, created_at, updated_at FROM notes ORDER BY created_at, id`)
	if err != nil {
		metrics.StoreOpsTotal.WithLabelValues("sqlite", "list", "error").Inc()
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		var id string
		if err := rows.Scan(&id, &n.Title, &n.Content, &n.CreatedAt, &n.UpdatedAt); err != nil {
			metrics.StoreOpsTotal.WithLabelValues("sqlite", "list", "error").Inc()
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		n.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("corrupt note id %q: %w", id, err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		metrics.StoreOpsTotal.WithLabelValues("sqlite", "list", "error").Inc()
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}

	metrics.StoreOpsTotal.WithLabelValues("sqlite", "list", "ok").Inc()
	return notes, nil
}

// Insert writes a new note.
func (s *Store) Insert(ctx context.Context, n Note) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (id, title, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		n.ID.String(), n.Title, n.Content, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		metrics.StoreOpsTotal.WithLabelValues("sqlite", "insert", "error").Inc()
		return fmt.Errorf("failed to insert note: %w", err)
	}
	metrics.StoreOpsTotal.WithLabelValues("sqlite", "insert", "ok").Inc()
	return nil
}

// Update rewrites an existing note. Returns ErrNoteNotFound for unknown ids.
func (s *Store) Update(ctx context.Context, n Note) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE notes SET title = ?, content = ?, updated_at = ? WHERE id = ?`,
		n.Title, n.Content, n.UpdatedAt, n.ID.String())
	if err != nil {
		metrics.StoreOpsTotal.WithLabelValues("sqlite", "update", "error").Inc()
		return fmt.Errorf("failed to update note: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNoteNotFound
	}
	metrics.StoreOpsTotal.WithLabelValues("sqlite", "update", "ok").Inc()
	return nil
}

// Delete removes a note. Returns ErrNoteNotFound for unknown ids.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id.String())
	if err != nil {
		metrics.StoreOpsTotal.WithLabelValues("sqlite", "delete", "error").Inc()
		return fmt.Errorf("failed to delete note: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNoteNotFound
	}
	metrics.StoreOpsTotal.WithLabelValues("sqlite", "delete", "ok").Inc()
	return nil
}

// Close closes the database file.
func (s *Store) Close() error {
	return s.db.Close()
}
