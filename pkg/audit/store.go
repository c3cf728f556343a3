package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// Store reads the audit trail. It is the only read surface for log entries;
// there is deliberately no update or delete.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// List returns entries newest first, optionally filtered to one record
// reference (e.g. "organization:<id>").
func (s *Store) List(ctx context.Context, record string, limit, offset int) ([]*LogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, record, event, field, before, after, created_at
		FROM logs
	`
	args := []interface{}{}
	if record != "" {
		query += ` WHERE record = $1`
		args = append(args, record)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list log entries: %w", err)
	}
	defer rows.Close()

	var entries []*LogEntry
	for rows.Next() {
		entry := &LogEntry{}
		var field sql.NullString
		var before, after []byte
		if err := rows.Scan(&entry.ID, &entry.Record, &entry.Event, &field, &before, &after, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		if field.Valid {
			entry.Field = field.String
		}
		entry.Before = before
		entry.After = after
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log entries: %w", err)
	}

	return entries, nil
}
