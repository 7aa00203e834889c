package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"crabmigrate/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// Store manages ledger persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the migration database and ensures the
// ledger schema exists.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.DatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.EnsureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// EnsureSchema creates the ledger table when absent. It is idempotent and
// safe to call before every operation; it never drops existing data.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure ledger schema: %w", err)
	}
	return nil
}

// InsertIfAbsent records a pending entry for an attachment. Discovering the
// same attachment twice never creates a duplicate row.
func (s *Store) InsertIfAbsent(ctx context.Context, attachmentID int64) error {
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO migration_entries (attachment_id, status) VALUES (?, ?)`,
		attachmentID,
		StatusPending,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// MarkCompleted transitions an entry to completed and records the optimized
// asset id. A prior failed status is overwritten; the row is created first
// when discovery never saw the attachment.
func (s *Store) MarkCompleted(ctx context.Context, attachmentID, optimizedID int64) error {
	if err := s.InsertIfAbsent(ctx, attachmentID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE migration_entries
         SET optimized_id = ?, status = ?, processed_at = ?
         WHERE attachment_id = ?`,
		optimizedID,
		StatusCompleted,
		time.Now().UTC().Format(time.RFC3339Nano),
		attachmentID,
	)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// MarkFailed transitions an entry to failed. It returns ErrNotFound when no
// entry exists for the attachment. Completed entries are left untouched so
// the lifecycle never regresses.
func (s *Store) MarkFailed(ctx context.Context, attachmentID int64) error {
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	entry, err := s.Get(ctx, attachmentID)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("%w: attachment %d", ErrNotFound, attachmentID)
	}
	if entry.Status == StatusCompleted {
		return nil
	}
	_, err = s.db.ExecContext(
		ctx,
		`UPDATE migration_entries SET status = ?, processed_at = ? WHERE attachment_id = ?`,
		StatusFailed,
		time.Now().UTC().Format(time.RFC3339Nano),
		attachmentID,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// Get fetches the entry for an attachment, or nil when absent.
func (s *Store) Get(ctx context.Context, attachmentID int64) (*Entry, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+entryColumns+` FROM migration_entries WHERE attachment_id = ?`,
		attachmentID,
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	return entry, nil
}

// List returns entries filtered by status set (or all entries when no
// status is provided) ordered by attachment id.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Entry, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + entryColumns + ` FROM migration_entries`
	orderClause := ` ORDER BY attachment_id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// AggregateCounts returns entry counts grouped by status.
func (s *Store) AggregateCounts(ctx context.Context) (Summary, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return Summary{}, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM migration_entries GROUP BY status`)
	if err != nil {
		return Summary{}, fmt.Errorf("aggregate ledger counts: %w", err)
	}
	defer rows.Close()

	var summary Summary
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Summary{}, err
		}
		switch status {
		case StatusPending:
			summary.Pending = count
		case StatusCompleted:
			summary.Completed = count
		case StatusFailed:
			summary.Failed = count
		}
	}
	return summary, rows.Err()
}

// CompletedMap returns attachment -> optimized id for completed entries
// whose attachment id appears in the given set. Pending and failed entries
// are never included.
func (s *Store) CompletedMap(ctx context.Context, attachmentIDs []int64) (map[int64]int64, error) {
	result := make(map[int64]int64, len(attachmentIDs))
	if len(attachmentIDs) == 0 {
		return result, nil
	}

	placeholders := makePlaceholders(len(attachmentIDs))
	args := make([]any, 0, len(attachmentIDs)+1)
	args = append(args, StatusCompleted)
	for _, id := range attachmentIDs {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT attachment_id, optimized_id FROM migration_entries
         WHERE status = ? AND attachment_id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query completed map: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var attachmentID int64
		var optimizedID sql.NullInt64
		if err := rows.Scan(&attachmentID, &optimizedID); err != nil {
			return nil, err
		}
		if optimizedID.Valid {
			result[attachmentID] = optimizedID.Int64
		}
	}
	return result, rows.Err()
}

const entryColumns = "id, attachment_id, optimized_id, status, processed_at"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		id           int64
		attachmentID int64
		optimizedID  sql.NullInt64
		statusStr    string
		processedRaw sql.NullString
	)

	if err := scanner.Scan(&id, &attachmentID, &optimizedID, &statusStr, &processedRaw); err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:           id,
		AttachmentID: attachmentID,
		Status:       Status(statusStr),
	}
	if optimizedID.Valid {
		entry.OptimizedID = optimizedID.Int64
	}
	if processedRaw.Valid {
		if processed, err := time.Parse(time.RFC3339Nano, processedRaw.String); err == nil {
			entry.ProcessedAt = &processed
		}
	}
	return entry, nil
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
