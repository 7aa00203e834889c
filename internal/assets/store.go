package assets

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"crabmigrate/internal/config"
	"crabmigrate/internal/mediatype"
)

//go:embed schema.sql
var schemaSQL string

// Store manages the asset catalog and the file library.
type Store struct {
	db         *sql.DB
	libraryDir string
	baseURL    string
	hook       CreatedHook
}

// Open initializes or connects to the asset catalog.
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

	store := &Store{
		db:         db,
		libraryDir: cfg.Paths.LibraryDir,
		baseURL:    cfg.Paths.PublicBaseURL,
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure asset schema: %w", err)
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

// OnCreate registers the creation hook. The hook runs synchronously after
// each successful Create; registering replaces any previous hook.
func (s *Store) OnCreate(hook CreatedHook) {
	s.hook = hook
}

// Create stores the asset bytes in the library and inserts a catalog row,
// then fires the creation hook. Optimized uploads get their format recorded
// from the stored MIME type when the upload does not name one.
func (s *Store) Create(ctx context.Context, params CreateParams) (*Asset, error) {
	if len(params.Data) == 0 {
		return nil, errors.New("asset data is empty")
	}
	fileName, err := s.writeFile(params.FileName, params.Data)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(params.Title)
	if title == "" {
		title = titleFromFileName(fileName)
	}

	format := strings.TrimSpace(params.Format)
	if format == "" && params.IsOptimized {
		if cfg, ok := mediatype.FormatForMime(params.MimeType); ok {
			format = cfg.Name
		}
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO assets (title, file_name, mime_type, is_optimized, optimized_format, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		title,
		fileName,
		strings.ToLower(strings.TrimSpace(params.MimeType)),
		boolToInt(params.IsOptimized),
		nullableString(format),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert asset: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	for _, variant := range params.Variants {
		if variant.Width <= 0 || variant.Height <= 0 || len(variant.Data) == 0 {
			continue
		}
		if err := s.addVariant(ctx, id, fileName, variant); err != nil {
			return nil, err
		}
	}

	if s.hook != nil {
		event := CreatedEvent{
			AssetID:     id,
			IsMigration: params.IsMigration,
			OriginalID:  params.OriginalID,
			Format:      format,
		}
		if err := s.hook(ctx, event); err != nil {
			return nil, fmt.Errorf("asset created hook: %w", err)
		}
	}

	return s.Get(ctx, id)
}

func (s *Store) addVariant(ctx context.Context, assetID int64, baseName string, variant VariantData) error {
	ext := filepath.Ext(baseName)
	stem := strings.TrimSuffix(baseName, ext)
	variantName := fmt.Sprintf("%s-%dx%d%s", stem, variant.Width, variant.Height, ext)
	if err := os.WriteFile(filepath.Join(s.libraryDir, variantName), variant.Data, 0o644); err != nil {
		return fmt.Errorf("write variant file: %w", err)
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT OR REPLACE INTO asset_variants (asset_id, width, height, file_name) VALUES (?, ?, ?, ?)`,
		assetID,
		variant.Width,
		variant.Height,
		variantName,
	)
	if err != nil {
		return fmt.Errorf("insert variant: %w", err)
	}
	return nil
}

// Get fetches an asset by id, or nil when absent.
func (s *Store) Get(ctx context.Context, id int64) (*Asset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return asset, nil
}

// Exists reports whether an asset id is present in the catalog.
func (s *Store) Exists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM assets WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("asset exists: %w", err)
	}
	return true, nil
}

// CountImages returns the number of image assets in the catalog.
func (s *Store) CountImages(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM assets WHERE mime_type LIKE 'image/%'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count images: %w", err)
	}
	return count, nil
}

// PageImages returns one page of image assets ordered by id. Pages are
// 1-based.
func (s *Store) PageImages(ctx context.Context, page, pageSize int) ([]*Asset, error) {
	if page < 1 {
		page = 1
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+assetColumns+` FROM assets WHERE mime_type LIKE 'image/%' ORDER BY id LIMIT ? OFFSET ?`,
		pageSize,
		(page-1)*pageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("page images: %w", err)
	}
	defer rows.Close()

	var result []*Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, asset)
	}
	return result, rows.Err()
}

// SetOptimizedRef records the forward pointer from an original asset to its
// migrated replacement.
func (s *Store) SetOptimizedRef(ctx context.Context, originalID, optimizedID int64) error {
	return s.updateRef(ctx, `UPDATE assets SET optimized_id = ? WHERE id = ?`, optimizedID, originalID)
}

// SetUnoptimizedRef records the back pointer from a migrated asset to its
// original.
func (s *Store) SetUnoptimizedRef(ctx context.Context, assetID, originalID int64) error {
	return s.updateRef(ctx, `UPDATE assets SET unoptimized_id = ? WHERE id = ?`, originalID, assetID)
}

// SetOptimizedFormat records the format an original asset was migrated to.
func (s *Store) SetOptimizedFormat(ctx context.Context, assetID int64, format string) error {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		return nil
	}
	return s.updateRef(ctx, `UPDATE assets SET optimized_format = ? WHERE id = ?`, format, assetID)
}

func (s *Store) updateRef(ctx context.Context, query string, value any, id int64) error {
	res, err := s.db.ExecContext(ctx, query, value, id)
	if err != nil {
		return fmt.Errorf("update asset: %w", err)
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

// FileData reads the stored bytes for an asset.
func (s *Store) FileData(ctx context.Context, id int64) ([]byte, *Asset, error) {
	asset, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if asset == nil {
		return nil, nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	data, err := os.ReadFile(filepath.Join(s.libraryDir, asset.FileName))
	if err != nil {
		return nil, nil, fmt.Errorf("read asset file: %w", err)
	}
	return data, asset, nil
}

// FileDataByName reads stored bytes by library file name. Variant files
// resolve to their parent asset for metadata.
func (s *Store) FileDataByName(ctx context.Context, name string) ([]byte, *Asset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE file_name = ?`, name)
	asset, err := scanAsset(row)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("lookup file name: %w", err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		var assetID int64
		err = s.db.QueryRowContext(ctx, `SELECT asset_id FROM asset_variants WHERE file_name = ?`, name).Scan(&assetID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, fmt.Errorf("%w: file %s", ErrNotFound, name)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("lookup variant name: %w", err)
		}
		asset, err = s.Get(ctx, assetID)
		if err != nil {
			return nil, nil, err
		}
	}
	data, err := os.ReadFile(filepath.Join(s.libraryDir, name))
	if err != nil {
		return nil, nil, fmt.Errorf("read asset file: %w", err)
	}
	return data, asset, nil
}

// DiscardFileData removes an asset's stored bytes, including variant
// files, while keeping its catalog row. Missing files are not an error;
// the linking service may run twice for the same upload.
func (s *Store) DiscardFileData(ctx context.Context, id int64) error {
	asset, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if asset == nil {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	variants, err := s.Variants(ctx, id)
	if err != nil {
		return err
	}
	for _, variant := range variants {
		if err := os.Remove(filepath.Join(s.libraryDir, variant.FileName)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove variant file: %w", err)
		}
	}
	if err := os.Remove(filepath.Join(s.libraryDir, asset.FileName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove asset file: %w", err)
	}
	return nil
}

// Variants returns the recorded sized renditions for an asset.
func (s *Store) Variants(ctx context.Context, id int64) ([]Variant, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT width, height, file_name FROM asset_variants WHERE asset_id = ? ORDER BY width, height`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("query variants: %w", err)
	}
	defer rows.Close()

	var variants []Variant
	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.Width, &v.Height, &v.FileName); err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

func (s *Store) writeFile(fileName string, data []byte) (string, error) {
	name := sanitizeFileName(fileName)
	path := filepath.Join(s.libraryDir, name)
	if _, err := os.Stat(path); err == nil {
		// Collision with an existing upload; keep both files.
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		name = fmt.Sprintf("%s-%s%s", stem, uuid.NewString()[:8], ext)
		path = filepath.Join(s.libraryDir, name)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write asset file: %w", err)
	}
	return name, nil
}

func sanitizeFileName(fileName string) string {
	name := filepath.Base(strings.TrimSpace(fileName))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return uuid.NewString()
	}
	return name
}

func titleFromFileName(fileName string) string {
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	base = strings.ReplaceAll(base, "-", " ")
	base = strings.ReplaceAll(base, "_", " ")
	base = strings.TrimSpace(base)
	if base == "" {
		return "Untitled"
	}
	return base
}

const assetColumns = "id, title, file_name, mime_type, is_optimized, optimized_id, unoptimized_id, optimized_format, created_at"

func scanAsset(scanner interface{ Scan(dest ...any) error }) (*Asset, error) {
	var (
		id            int64
		title         string
		fileName      string
		mimeType      string
		isOptimized   int
		optimizedID   sql.NullInt64
		unoptimizedID sql.NullInt64
		format        sql.NullString
		createdRaw    string
	)

	if err := scanner.Scan(&id, &title, &fileName, &mimeType, &isOptimized, &optimizedID, &unoptimizedID, &format, &createdRaw); err != nil {
		return nil, err
	}

	asset := &Asset{
		ID:              id,
		Title:           title,
		FileName:        fileName,
		MimeType:        mimeType,
		IsOptimized:     isOptimized != 0,
		OptimizedFormat: format.String,
	}
	if optimizedID.Valid {
		asset.OptimizedID = optimizedID.Int64
	}
	if unoptimizedID.Valid {
		asset.UnoptimizedID = unoptimizedID.Int64
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		asset.CreatedAt = created
	}
	return asset, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
