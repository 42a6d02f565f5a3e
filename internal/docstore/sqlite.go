package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a single-node Store backed by SQLite. Documents are
// stored as JSON rows; filters and ordering use json_extract, so any
// filter+order combination is served without composite indexes.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteStore opens (or creates) the database and applies the schema.
func NewSQLiteStore(path string, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id         TEXT NOT NULL,
		body       TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logger.Info().Str("path", path).Msg("sqlite document store initialized")
	return &SQLiteStore{
		db:     db,
		logger: logger.With().Str("component", "docstore.sqlite").Logger(),
	}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Put inserts or replaces a document.
func (s *SQLiteStore) Put(ctx context.Context, collection string, doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("sqlitestore: put into %s: empty document id", collection)
	}
	body, err := json.Marshal(doc.Fields)
	if err != nil {
		return fmt.Errorf("sqlitestore: encode document %s/%s: %w", collection, doc.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)
		 ON CONFLICT (collection, id) DO UPDATE SET body = excluded.body`,
		collection, doc.ID, string(body))
	if err != nil {
		return fmt.Errorf("sqlitestore: put %s/%s: %w", collection, doc.ID, err)
	}
	return nil
}

// GetByID fetches a single document by ID.
func (s *SQLiteStore) GetByID(ctx context.Context, collection, id string) (*Document, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND id = ?`,
		collection, id).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: get %s/%s: %w", collection, id, err)
	}
	return decodeRow(id, body)
}

// Query evaluates equality filters, optional ordering, and the limit.
func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Document, error) {
	var b strings.Builder
	b.WriteString(`SELECT id, body FROM documents WHERE collection = ?`)
	args := []any{q.Collection}

	for _, f := range q.Filters {
		b.WriteString(` AND json_extract(body, ?) = ?`)
		args = append(args, "$."+f.Field, filterArg(f.Value))
	}
	if q.OrderBy != "" {
		b.WriteString(` ORDER BY json_extract(body, ?)`)
		args = append(args, "$."+q.OrderBy)
		if q.Descending {
			b.WriteString(` DESC`)
		}
	} else {
		b.WriteString(` ORDER BY id`)
	}
	if q.Limit > 0 {
		b.WriteString(` LIMIT ?`)
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: query %s: %w", q.Collection, err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan %s: %w", q.Collection, err)
		}
		doc, err := decodeRow(id, body)
		if err != nil {
			return nil, err
		}
		out = append(out, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitestore: iterate %s: %w", q.Collection, err)
	}
	return out, nil
}

func decodeRow(id, body string) (*Document, error) {
	fields := make(map[string]any)
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return nil, fmt.Errorf("sqlitestore: decode document %s: %w", id, err)
	}
	return &Document{ID: id, Fields: fields}, nil
}

// filterArg converts a filter value to its JSON column representation.
// Timestamps are stored as RFC 3339 strings by json.Marshal, so they
// compare the same way here.
func filterArg(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.Format(time.RFC3339Nano)
	}
	return v
}
