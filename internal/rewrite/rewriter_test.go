package rewrite_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"crabmigrate/internal/logging"
	"crabmigrate/internal/rewrite"
	"crabmigrate/internal/testsupport"
)

func TestReplacePageRewritesMappedDocuments(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	assetStore := testsupport.MustOpenAssets(t, cfg)
	ledgerStore := testsupport.MustOpenLedgerWith(t, cfg)
	docStore := testsupport.MustOpenDocuments(t, cfg)
	rewriter := rewrite.NewRewriter(docStore, ledgerStore, assetStore, logging.NewNop())
	ctx := context.Background()

	original := testsupport.NewImageAsset(t, assetStore, "photo.jpg", "image/jpeg")
	replacement := testsupport.NewImageAsset(t, assetStore, "photo.avif", "image/avif")
	if err := ledgerStore.MarkCompleted(ctx, original.ID, replacement.ID); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	mappedBody := fmt.Sprintf(
		`<img src="http://example.test/media/file/photo.jpg" class="wp-image-%d" srcset="photo-300.jpg 300w">`,
		original.ID)
	unmappedBody := `<img src="x.jpg" class="wp-image-424242">`

	mappedID, err := docStore.Create(ctx, "post", "Mapped", mappedBody)
	if err != nil {
		t.Fatalf("Create mapped doc: %v", err)
	}
	unmappedID, err := docStore.Create(ctx, "post", "Unmapped", unmappedBody)
	if err != nil {
		t.Fatalf("Create unmapped doc: %v", err)
	}

	result, err := rewriter.ReplacePage(ctx, 1)
	if err != nil {
		t.Fatalf("ReplacePage: %v", err)
	}
	if result.Processed != 2 || result.Replaced != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if !result.IsLast || result.TotalPages != 1 {
		t.Fatalf("unexpected pagination %+v", result)
	}

	mappedDoc, err := docStore.Get(ctx, mappedID)
	if err != nil {
		t.Fatalf("Get mapped doc: %v", err)
	}
	if !strings.Contains(mappedDoc.Body, fmt.Sprintf("wp-image-%d", replacement.ID)) {
		t.Fatalf("class not rewritten: %q", mappedDoc.Body)
	}
	if !strings.Contains(mappedDoc.Body, "photo.avif") {
		t.Fatalf("src not rewritten: %q", mappedDoc.Body)
	}
	if strings.Contains(mappedDoc.Body, "srcset") {
		t.Fatalf("stale srcset survived: %q", mappedDoc.Body)
	}

	unmappedDoc, err := docStore.Get(ctx, unmappedID)
	if err != nil {
		t.Fatalf("Get unmapped doc: %v", err)
	}
	if unmappedDoc.Body != unmappedBody {
		t.Fatalf("unmapped document rewritten: %q", unmappedDoc.Body)
	}
}

func TestReplacePageSkipsPendingAndFailedEntries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	assetStore := testsupport.MustOpenAssets(t, cfg)
	ledgerStore := testsupport.MustOpenLedgerWith(t, cfg)
	docStore := testsupport.MustOpenDocuments(t, cfg)
	rewriter := rewrite.NewRewriter(docStore, ledgerStore, assetStore, logging.NewNop())
	ctx := context.Background()

	pending := testsupport.NewImageAsset(t, assetStore, "pending.jpg", "image/jpeg")
	failed := testsupport.NewImageAsset(t, assetStore, "failed.jpg", "image/jpeg")
	if err := ledgerStore.InsertIfAbsent(ctx, pending.ID); err != nil {
		t.Fatalf("InsertIfAbsent: %v", err)
	}
	if err := ledgerStore.InsertIfAbsent(ctx, failed.ID); err != nil {
		t.Fatalf("InsertIfAbsent: %v", err)
	}
	if err := ledgerStore.MarkFailed(ctx, failed.ID); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	body := fmt.Sprintf(`<img src="a.jpg" class="wp-image-%d"><img src="b.jpg" class="wp-image-%d">`, pending.ID, failed.ID)
	id, err := docStore.Create(ctx, "post", "Waiting", body)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	result, err := rewriter.ReplacePage(ctx, 1)
	if err != nil {
		t.Fatalf("ReplacePage: %v", err)
	}
	if result.Replaced != 0 {
		t.Fatalf("document rewritten against unfinished migration: %+v", result)
	}

	doc, err := docStore.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Body != body {
		t.Fatalf("body changed: %q", doc.Body)
	}
}

func TestReplacePageSecondRunIsNoop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	assetStore := testsupport.MustOpenAssets(t, cfg)
	ledgerStore := testsupport.MustOpenLedgerWith(t, cfg)
	docStore := testsupport.MustOpenDocuments(t, cfg)
	rewriter := rewrite.NewRewriter(docStore, ledgerStore, assetStore, logging.NewNop())
	ctx := context.Background()

	original := testsupport.NewImageAsset(t, assetStore, "once.jpg", "image/jpeg")
	replacement := testsupport.NewImageAsset(t, assetStore, "once.avif", "image/avif")
	if err := ledgerStore.MarkCompleted(ctx, original.ID, replacement.ID); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	body := fmt.Sprintf(
		`<!-- wp:image {"id":%d,"sizeSlug":"large"} --><img src="old.jpg" class="wp-image-%d"><!-- /wp:image -->`,
		original.ID, original.ID)
	id, err := docStore.Create(ctx, "post", "Once", body)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, err := rewriter.ReplacePage(ctx, 1)
	if err != nil {
		t.Fatalf("ReplacePage first: %v", err)
	}
	if first.Replaced != 1 {
		t.Fatalf("first run replaced %d, want 1", first.Replaced)
	}

	afterFirst, err := docStore.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get after first: %v", err)
	}

	second, err := rewriter.ReplacePage(ctx, 1)
	if err != nil {
		t.Fatalf("ReplacePage second: %v", err)
	}
	if second.Replaced != 0 {
		t.Fatalf("second run replaced %d, want 0", second.Replaced)
	}

	afterSecond, err := docStore.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get after second: %v", err)
	}
	if afterSecond.Body != afterFirst.Body {
		t.Fatalf("second run changed body: %q vs %q", afterSecond.Body, afterFirst.Body)
	}
}

func TestReplacePagePagination(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	assetStore := testsupport.MustOpenAssets(t, cfg)
	ledgerStore := testsupport.MustOpenLedgerWith(t, cfg)
	docStore := testsupport.MustOpenDocuments(t, cfg)
	rewriter := rewrite.NewRewriter(docStore, ledgerStore, assetStore, logging.NewNop())
	ctx := context.Background()

	for i := 0; i < rewrite.PageSize+2; i++ {
		if _, err := docStore.Create(ctx, "post", fmt.Sprintf("Doc %d", i), "plain body"); err != nil {
			t.Fatalf("Create doc %d: %v", i, err)
		}
	}

	page1, err := rewriter.ReplacePage(ctx, 1)
	if err != nil {
		t.Fatalf("ReplacePage 1: %v", err)
	}
	if page1.Processed != rewrite.PageSize || page1.IsLast || page1.TotalPages != 2 {
		t.Fatalf("unexpected page 1 result %+v", page1)
	}

	page2, err := rewriter.ReplacePage(ctx, 2)
	if err != nil {
		t.Fatalf("ReplacePage 2: %v", err)
	}
	if page2.Processed != 2 || !page2.IsLast {
		t.Fatalf("unexpected page 2 result %+v", page2)
	}
}
