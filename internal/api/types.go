// Package api defines the transport payloads shared by the HTTP daemon and
// the REST client.
package api

import (
	"time"

	"crabmigrate/internal/assets"
	"crabmigrate/internal/ledger"
)

const dateTimeFormat = time.RFC3339

// MigrationStatus reports ledger counts per status.
type MigrationStatus struct {
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// SetFailureRequest marks one attachment as failed.
type SetFailureRequest struct {
	AttachmentID int64 `json:"attachment_id"`
}

// SetFailureResponse acknowledges a failure report. Status carries the
// entry's resulting state, which stays "completed" when the report arrived
// after a successful link.
type SetFailureResponse struct {
	Success      bool   `json:"success"`
	AttachmentID int64  `json:"attachment_id"`
	Status       string `json:"status"`
}

// Asset describes a stored media object in a transport-friendly format.
type Asset struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	FileName        string `json:"file_name"`
	MimeType        string `json:"mime_type"`
	URL             string `json:"url"`
	IsOptimized     bool   `json:"is_optimized"`
	OptimizedID     int64  `json:"optimized_id,omitempty"`
	UnoptimizedID   int64  `json:"unoptimized_id,omitempty"`
	OptimizedFormat string `json:"optimized_format,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
}

// UploadResponse acknowledges a stored upload.
type UploadResponse struct {
	ID  int64  `json:"id"`
	URL string `json:"url"`
}

// ErrorBody is the uniform error payload.
type ErrorBody struct {
	Error string `json:"error"`
}

// StatusFromSummary converts ledger counts into the transport shape.
func StatusFromSummary(summary ledger.Summary) MigrationStatus {
	return MigrationStatus{
		Pending:   summary.Pending,
		Completed: summary.Completed,
		Failed:    summary.Failed,
		Total:     summary.Total(),
	}
}

// AssetView converts a catalog row into the transport shape.
func AssetView(asset *assets.Asset, url string) Asset {
	view := Asset{
		ID:              asset.ID,
		Title:           asset.Title,
		FileName:        asset.FileName,
		MimeType:        asset.MimeType,
		URL:             url,
		IsOptimized:     asset.IsOptimized,
		OptimizedID:     asset.OptimizedID,
		UnoptimizedID:   asset.UnoptimizedID,
		OptimizedFormat: asset.OptimizedFormat,
	}
	if !asset.CreatedAt.IsZero() {
		view.CreatedAt = asset.CreatedAt.Format(dateTimeFormat)
	}
	return view
}
