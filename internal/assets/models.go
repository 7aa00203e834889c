package assets

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates an asset id with no catalog row.
var ErrNotFound = errors.New("asset not found")

// Asset represents one stored media object.
type Asset struct {
	ID              int64
	Title           string
	FileName        string
	MimeType        string
	IsOptimized     bool
	OptimizedID     int64 // forward pointer to the migrated replacement
	UnoptimizedID   int64 // back pointer from a migrated asset to its original
	OptimizedFormat string
	CreatedAt       time.Time
}

// Variant is a sized rendition of an asset recorded alongside the original.
type Variant struct {
	Width    int
	Height   int
	FileName string
}

// VariantData carries the bytes for one sized rendition on upload.
type VariantData struct {
	Width  int
	Height int
	Data   []byte
}

// CreateParams describes an asset upload.
type CreateParams struct {
	Title       string
	FileName    string
	MimeType    string
	Data        []byte
	IsOptimized bool
	IsMigration bool
	OriginalID  int64
	Format      string
	Variants    []VariantData
}

// CreatedEvent is delivered to the creation hook after an asset is stored.
type CreatedEvent struct {
	AssetID     int64
	IsMigration bool
	OriginalID  int64
	Format      string
}

// CreatedHook reacts to a stored asset. Registered once at startup; the
// linking service uses it to close out migration uploads.
type CreatedHook func(ctx context.Context, event CreatedEvent) error
