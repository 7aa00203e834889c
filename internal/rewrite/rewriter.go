// Package rewrite updates document bodies so references to migrated assets
// point at their replacements. Four structural patterns are in scope; any
// other markup passes through untouched.
package rewrite

import (
	"context"
	"fmt"
	"log/slog"

	"crabmigrate/internal/documents"
	"crabmigrate/internal/ledger"
	"crabmigrate/internal/logging"
)

// PageSize is the fixed number of documents rewritten per request.
const PageSize = 50

// PageResult is the outcome of rewriting one page of documents.
type PageResult struct {
	CurrentPage int  `json:"current_page"`
	Processed   int  `json:"processed"`
	Replaced    int  `json:"replaced"`
	TotalPages  int  `json:"total_pages"`
	IsLast      bool `json:"is_last"`
}

// Rewriter walks documents page by page and substitutes migrated asset
// references.
type Rewriter struct {
	documents *documents.Store
	ledger    *ledger.Store
	resolver  Resolver
	rules     []Rule
	logger    *slog.Logger
}

// NewRewriter builds a rewriter over the document store, the ledger, and an
// asset URL resolver.
func NewRewriter(documentStore *documents.Store, ledgerStore *ledger.Store, resolver Resolver, logger *slog.Logger) *Rewriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rewriter{
		documents: documentStore,
		ledger:    ledgerStore,
		resolver:  resolver,
		rules:     Rules(),
		logger:    logging.WithComponent(logger, "rewrite"),
	}
}

// ReplacePage rewrites one 1-based page of documents. Only documents whose
// body actually changes are written back; the returned counts let the
// caller drive pagination and report progress.
func (r *Rewriter) ReplacePage(ctx context.Context, page int) (*PageResult, error) {
	if page < 1 {
		page = 1
	}

	total, err := r.documents.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	totalPages := (total + PageSize - 1) / PageSize
	if totalPages < 1 {
		totalPages = 1
	}

	result := &PageResult{
		CurrentPage: page,
		TotalPages:  totalPages,
		IsLast:      page >= totalPages,
	}

	docs, err := r.documents.ListPage(ctx, page, PageSize)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	result.Processed = len(docs)
	if len(docs) == 0 {
		return result, nil
	}

	bodies := make([]string, 0, len(docs))
	for _, doc := range docs {
		bodies = append(bodies, doc.Body)
	}
	ids := ScanIDs(bodies)
	if len(ids) == 0 {
		return result, nil
	}

	mapped, err := r.ledger.CompletedMap(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("completed map: %w", err)
	}
	if len(mapped) == 0 {
		return result, nil
	}

	for _, doc := range docs {
		rewritten, err := r.rewriteBody(ctx, doc.Body, mapped)
		if err != nil {
			return nil, fmt.Errorf("rewrite document %d: %w", doc.ID, err)
		}
		if rewritten == doc.Body {
			continue
		}
		if err := r.documents.UpdateBody(ctx, doc.ID, rewritten); err != nil {
			return nil, fmt.Errorf("persist document %d: %w", doc.ID, err)
		}
		result.Replaced++
	}

	r.logger.InfoContext(ctx, "rewrote document page",
		logging.Int(logging.FieldPage, page),
		logging.Int("processed", result.Processed),
		logging.Int("replaced", result.Replaced))
	return result, nil
}

func (r *Rewriter) rewriteBody(ctx context.Context, body string, mapped Map) (string, error) {
	current := body
	for _, rule := range r.rules {
		next, err := rule.Apply(ctx, current, mapped, r.resolver)
		if err != nil {
			return "", fmt.Errorf("%s rule: %w", rule.Name, err)
		}
		current = next
	}
	return current, nil
}
