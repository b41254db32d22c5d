package docstore

import (
	"context"
	"log/slog"
	"slices"
	"testing"

	"github.com/ridwanullahh/qurandb/internal/blobstore"
)

func TestExportImportRoundTrip(t *testing.T) {
	s := queryFixture(t)
	ctx := context.Background()
	content, err := s.ExportCollection(ctx, "bookmarks")
	if err != nil {
		t.Fatal(err)
	}
	dst := New(blobstore.NewMemStore(), "db", slog.Default())
	dst.RetryBase = 0
	n, err := dst.ImportCollection(ctx, "bookmarks", content, true)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Fatalf("imported %d documents, want 4", n)
	}
	docs, err := dst.Get(ctx, "bookmarks")
	if err != nil {
		t.Fatal(err)
	}
	// Overwrite preserves the source documents verbatim, ids included.
	if len(docs) != 4 || docs[0].ID() != "1" {
		t.Fatalf("imported data = %v", docs)
	}
}

func TestImportAppend(t *testing.T) {
	s := queryFixture(t)
	ctx := context.Background()
	n, err := s.ImportCollection(ctx, "bookmarks", []byte(`[{"surahNumber": 112}]`), false)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("imported %d, want 1", n)
	}
	count, err := s.Query("bookmarks").Count(ctx)
	if err != nil || count != 5 {
		t.Fatalf("count = %d, %v", count, err)
	}
}

func TestImportRejectsMalformed(t *testing.T) {
	s := queryFixture(t)
	if _, err := s.ImportCollection(context.Background(), "bookmarks", []byte(`{"not": "an array"}`), true); err == nil {
		t.Fatal("expected an error")
	}
}

func TestListCollections(t *testing.T) {
	s := queryFixture(t)
	ctx := context.Background()
	if _, err := s.Insert(ctx, "surahs", Document{"name": "Al-Asr"}); err != nil {
		t.Fatal(err)
	}
	names, err := s.ListCollections(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(names, []string{"bookmarks", "surahs"}) {
		t.Fatalf("collections = %v", names)
	}
}

func TestExportEmptyCollection(t *testing.T) {
	s := New(blobstore.NewMemStore(), "db", slog.Default())
	content, err := s.ExportCollection(context.Background(), "bookmarks")
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "[]" {
		t.Fatalf("export = %q, want empty array", content)
	}
}
