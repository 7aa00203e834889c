package documents_test

import (
	"context"
	"fmt"
	"testing"

	"crabmigrate/internal/testsupport"
)

func TestCreateAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenDocuments(t, cfg)
	ctx := context.Background()

	id, err := store.Create(ctx, "page", "About", "<p>hello</p>")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	doc, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.DocType != "page" || doc.Title != "About" || doc.Body != "<p>hello</p>" {
		t.Fatalf("unexpected document %+v", doc)
	}
	if doc.UpdatedAt.IsZero() {
		t.Fatal("expected updated_at to be set")
	}
}

func TestCreateDefaultsDocType(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenDocuments(t, cfg)
	ctx := context.Background()

	id, err := store.Create(ctx, "  ", "Untyped", "body")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	doc, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.DocType != "post" {
		t.Fatalf("expected default doc type post, got %q", doc.DocType)
	}
}

func TestListPagePaginates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenDocuments(t, cfg)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if _, err := store.Create(ctx, "post", fmt.Sprintf("Post %d", i), "body"); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 5 {
		t.Fatalf("expected 5 documents, got %d", count)
	}

	page2, err := store.ListPage(ctx, 2, 2)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if len(page2) != 2 || page2[0].Title != "Post 3" || page2[1].Title != "Post 4" {
		t.Fatalf("unexpected second page: %+v", page2)
	}

	empty, err := store.ListPage(ctx, 4, 2)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty page, got %d docs", len(empty))
	}
}

func TestUpdateBody(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenDocuments(t, cfg)
	ctx := context.Background()

	id, err := store.Create(ctx, "post", "Editable", "old body")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.UpdateBody(ctx, id, "new body"); err != nil {
		t.Fatalf("UpdateBody: %v", err)
	}
	doc, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Body != "new body" {
		t.Fatalf("body %q, want %q", doc.Body, "new body")
	}

	if err := store.UpdateBody(ctx, 999, "x"); !testsupport.IsNotFound(err) {
		t.Fatalf("expected not-found for unknown id, got %v", err)
	}

	if _, err := store.Get(ctx, 999); !testsupport.IsNotFound(err) {
		t.Fatalf("expected not-found for unknown id, got %v", err)
	}
}
