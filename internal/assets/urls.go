package assets

import (
	"context"
	"fmt"
	"strings"
)

// FileURL returns the public URL for an asset's stored file.
func (s *Store) FileURL(asset *Asset) string {
	return s.publicURL("media/file/" + asset.FileName)
}

// SizedFileURL returns the URL for the variant matching the requested
// dimensions, falling back to the full-size file when no variant matches.
func (s *Store) SizedFileURL(ctx context.Context, asset *Asset, width, height int) (string, error) {
	if width > 0 && height > 0 {
		variants, err := s.Variants(ctx, asset.ID)
		if err != nil {
			return "", err
		}
		for _, variant := range variants {
			if variant.Width == width && variant.Height == height {
				return s.publicURL("media/file/" + variant.FileName), nil
			}
		}
	}
	return s.FileURL(asset), nil
}

// AssetURL returns the public URL for the asset with the given id.
func (s *Store) AssetURL(ctx context.Context, id int64) (string, error) {
	asset, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if asset == nil {
		return "", fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return s.FileURL(asset), nil
}

// SizedAssetURL returns the URL for the variant of the given asset matching
// the requested dimensions, falling back to the full-size file.
func (s *Store) SizedAssetURL(ctx context.Context, id int64, width, height int) (string, error) {
	asset, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if asset == nil {
		return "", fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return s.SizedFileURL(ctx, asset, width, height)
}

// AttachmentURL returns the public permalink for an asset's detail page.
func (s *Store) AttachmentURL(id int64) string {
	return s.publicURL(fmt.Sprintf("media/%d", id))
}

func (s *Store) publicURL(path string) string {
	return strings.TrimRight(s.baseURL, "/") + "/" + path
}
