// Package discovery walks the image catalog page by page, classifies each
// asset, and records migration candidates in the ledger. Pagination state is
// reported so a client can drive the scan without holding the full catalog
// in memory.
package discovery

import (
	"context"
	"fmt"
	"log/slog"

	"crabmigrate/internal/assets"
	"crabmigrate/internal/config"
	"crabmigrate/internal/ledger"
	"crabmigrate/internal/logging"
	"crabmigrate/internal/mediatype"
)

// PageSize is the fixed number of catalog rows scanned per request.
const PageSize = 50

// Image describes one classified catalog entry. OptimizedID is only set
// when the forward reference points at an asset that still exists.
type Image struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	MimeType    string `json:"mime_type"`
	IsOptimized bool   `json:"isOptimized"`
	OptimizedID int64  `json:"optimizedId,omitempty"`
}

// Result is the outcome of scanning one catalog page.
type Result struct {
	Images     []Image `json:"images"`
	Current    int     `json:"current"`
	TotalPages int     `json:"total_pages"`
	TotalCount int     `json:"total_count"`
	IsLast     bool    `json:"is_last"`
}

// Service scans the asset catalog for images that still need migrating.
type Service struct {
	assets   *assets.Store
	ledger   *ledger.Store
	excluded mediatype.ExclusionSet
	logger   *slog.Logger
}

// NewService wires a discovery service against the given stores.
func NewService(cfg *config.Config, assetStore *assets.Store, ledgerStore *ledger.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		assets:   assetStore,
		ledger:   ledgerStore,
		excluded: mediatype.NewExclusionSet(cfg.Optimize.ExcludedTypes),
		logger:   logging.WithComponent(logger, "discovery"),
	}
}

// Discover scans one 1-based page of the image catalog. Every image on the
// page is returned with its classification; images that still need
// migrating are additionally recorded as pending in the ledger. Repeat
// calls for the same page change nothing in the ledger.
func (s *Service) Discover(ctx context.Context, page int) (*Result, error) {
	if page < 1 {
		page = 1
	}

	total, err := s.assets.CountImages(ctx)
	if err != nil {
		return nil, fmt.Errorf("count images: %w", err)
	}
	totalPages := (total + PageSize - 1) / PageSize
	if totalPages < 1 {
		totalPages = 1
	}

	result := &Result{
		Images:     []Image{},
		Current:    page,
		TotalPages: totalPages,
		TotalCount: total,
		IsLast:     page >= totalPages,
	}

	pageAssets, err := s.assets.PageImages(ctx, page, PageSize)
	if err != nil {
		return nil, fmt.Errorf("page images: %w", err)
	}

	pending := 0
	for _, asset := range pageAssets {
		image := Image{
			ID:          asset.ID,
			Title:       asset.Title,
			URL:         s.assets.FileURL(asset),
			MimeType:    asset.MimeType,
			IsOptimized: asset.IsOptimized,
		}
		if asset.OptimizedID != 0 {
			// A forward reference to a deleted asset does not count.
			exists, err := s.assets.Exists(ctx, asset.OptimizedID)
			if err != nil {
				return nil, fmt.Errorf("validate forward pointer: %w", err)
			}
			if exists {
				image.OptimizedID = asset.OptimizedID
			}
		}
		result.Images = append(result.Images, image)

		if image.IsOptimized || image.OptimizedID != 0 || s.excluded.Excluded(asset.MimeType) {
			continue
		}
		if err := s.ledger.InsertIfAbsent(ctx, asset.ID); err != nil {
			return nil, fmt.Errorf("record candidate: %w", err)
		}
		pending++
	}

	s.logger.InfoContext(ctx, "scanned catalog page",
		logging.Int(logging.FieldPage, page),
		logging.Int("total_pages", totalPages),
		logging.Int("pending", pending))
	return result, nil
}
