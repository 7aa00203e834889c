// Package linking closes out a migration upload: it connects the new asset
// to its original in both directions and marks the ledger row completed.
package linking

import (
	"context"
	"fmt"
	"log/slog"

	"crabmigrate/internal/assets"
	"crabmigrate/internal/config"
	"crabmigrate/internal/ledger"
	"crabmigrate/internal/logging"
)

// Linker reacts to stored assets that arrived as part of a migration.
type Linker struct {
	assets        *assets.Store
	ledger        *ledger.Store
	keepOriginals bool
	logger        *slog.Logger
}

// NewLinker builds a linker over the asset catalog and the ledger. When
// keep_originals is disabled, the original's stored bytes are discarded
// once the link is durable.
func NewLinker(cfg *config.Config, assetStore *assets.Store, ledgerStore *ledger.Store, logger *slog.Logger) *Linker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Linker{
		assets:        assetStore,
		ledger:        ledgerStore,
		keepOriginals: cfg.Optimize.KeepOriginals,
		logger:        logging.WithComponent(logger, "linking"),
	}
}

// Attach registers the linker as the asset store's creation hook.
func (l *Linker) Attach() {
	l.assets.OnCreate(l.HandleCreated)
}

// HandleCreated links a migration upload to its original. Uploads that are
// not migrations, or that name no original, pass through untouched. Running
// twice for the same upload leaves the same state behind.
func (l *Linker) HandleCreated(ctx context.Context, event assets.CreatedEvent) error {
	if !event.IsMigration || event.OriginalID == 0 {
		return nil
	}

	original, err := l.assets.Get(ctx, event.OriginalID)
	if err != nil {
		return fmt.Errorf("load original asset: %w", err)
	}
	if original == nil {
		l.logger.WarnContext(ctx, "migration upload names unknown original",
			logging.Int64(logging.FieldAttachmentID, event.OriginalID),
			logging.Int64(logging.FieldOptimizedID, event.AssetID))
		return fmt.Errorf("%w: original id %d", assets.ErrNotFound, event.OriginalID)
	}

	if err := l.assets.SetOptimizedRef(ctx, event.OriginalID, event.AssetID); err != nil {
		return fmt.Errorf("set forward reference: %w", err)
	}
	if err := l.assets.SetUnoptimizedRef(ctx, event.AssetID, event.OriginalID); err != nil {
		return fmt.Errorf("set back reference: %w", err)
	}
	if event.Format != "" {
		if err := l.assets.SetOptimizedFormat(ctx, event.OriginalID, event.Format); err != nil {
			return fmt.Errorf("record format: %w", err)
		}
	}
	if err := l.ledger.MarkCompleted(ctx, event.OriginalID, event.AssetID); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	if !l.keepOriginals {
		// The link is durable at this point; a discard failure must not
		// fail the upload that triggered it.
		if err := l.assets.DiscardFileData(ctx, event.OriginalID); err != nil {
			l.logger.WarnContext(ctx, "discard original bytes",
				logging.Int64(logging.FieldAttachmentID, event.OriginalID),
				logging.Error(err))
		}
	}

	l.logger.InfoContext(ctx, "linked migration upload",
		logging.Int64(logging.FieldAttachmentID, event.OriginalID),
		logging.Int64(logging.FieldOptimizedID, event.AssetID),
		logging.String("format", event.Format))
	return nil
}
