package documents

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"crabmigrate/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound indicates a document id with no row.
var ErrNotFound = errors.New("document not found")

// Document is one editable body of site content.
type Document struct {
	ID        int64
	DocType   string
	Title     string
	Body      string
	UpdatedAt time.Time
}

// Store manages persistent documents.
type Store struct {
	db *sql.DB
}

// Open initializes or connects to the document store.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.DatabasePath())
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

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure document schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Create inserts a document and returns its id.
func (s *Store) Create(ctx context.Context, docType, title, body string) (int64, error) {
	docType = strings.ToLower(strings.TrimSpace(docType))
	if docType == "" {
		docType = "post"
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO documents (doc_type, title, body, updated_at) VALUES (?, ?, ?, ?)`,
		docType,
		title,
		body,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Get fetches a document by id.
func (s *Store) Get(ctx context.Context, id int64) (*Document, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, doc_type, title, body, updated_at FROM documents WHERE id = ?`,
		id,
	)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// Count returns the total number of documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM documents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

// ListPage returns one 1-based page of documents ordered by id.
func (s *Store) ListPage(ctx context.Context, page, pageSize int) ([]*Document, error) {
	if page < 1 {
		page = 1
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, doc_type, title, body, updated_at FROM documents ORDER BY id LIMIT ? OFFSET ?`,
		pageSize,
		(page-1)*pageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var result []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, doc)
	}
	return result, rows.Err()
}

// UpdateBody replaces a document's body.
func (s *Store) UpdateBody(ctx context.Context, id int64, body string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE documents SET body = ?, updated_at = ? WHERE id = ?`,
		body,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("update document body: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

func scanDocument(scanner interface{ Scan(dest ...any) error }) (*Document, error) {
	var (
		doc        Document
		updatedRaw string
	)
	if err := scanner.Scan(&doc.ID, &doc.DocType, &doc.Title, &doc.Body, &updatedRaw); err != nil {
		return nil, err
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		doc.UpdatedAt = updated
	}
	return &doc, nil
}
