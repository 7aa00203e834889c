package testsupport

import (
	"context"
	"errors"
	"testing"

	"crabmigrate/internal/assets"
	"crabmigrate/internal/config"
	"crabmigrate/internal/documents"
	"crabmigrate/internal/ledger"
)

// MustOpenLedger opens a ledger.Store backed by a fresh temp config and
// registers cleanup.
func MustOpenLedger(t testing.TB) *ledger.Store {
	t.Helper()
	return MustOpenLedgerWith(t, NewConfig(t))
}

// MustOpenLedgerWith opens a ledger.Store for tests against an existing
// config, sharing its database with other stores.
func MustOpenLedgerWith(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenAssets opens an assets.Store for tests and registers cleanup.
func MustOpenAssets(t testing.TB, cfg *config.Config) *assets.Store {
	t.Helper()

	store, err := assets.Open(cfg)
	if err != nil {
		t.Fatalf("assets.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenDocuments opens a documents.Store for tests and registers cleanup.
func MustOpenDocuments(t testing.TB, cfg *config.Config) *documents.Store {
	t.Helper()

	store, err := documents.Open(cfg)
	if err != nil {
		t.Fatalf("documents.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewImageAsset stores a small image asset for tests using the provided
// store.
func NewImageAsset(t testing.TB, store *assets.Store, fileName, mimeType string) *assets.Asset {
	t.Helper()

	asset, err := store.Create(context.Background(), assets.CreateParams{
		FileName: fileName,
		MimeType: mimeType,
		Data:     []byte{0x42, 0x42, 0x42, 0x42},
	})
	if err != nil {
		t.Fatalf("assets.Create: %v", err)
	}
	return asset
}

// IsNotFound reports whether err represents a missing record in any of the
// persistent stores.
func IsNotFound(err error) bool {
	return errors.Is(err, ledger.ErrNotFound) ||
		errors.Is(err, assets.ErrNotFound) ||
		errors.Is(err, documents.ErrNotFound)
}
