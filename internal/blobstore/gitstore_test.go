package blobstore

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestGitStoreEmptyRepo(t *testing.T) {
	g, err := NewGitStore(t.TempDir(), "", "")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, err := g.Get(ctx, "db/users.json", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	names, err := g.List(ctx, "db")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected empty list, got %v", names)
	}
}

func TestGitStorePutGetConflict(t *testing.T) {
	g, err := NewGitStore(t.TempDir(), "Tester", "t@example.com")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	v1, err := g.Put(ctx, "db/users.json", []byte(`[{"id":"1"}]`), "")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	obj, err := g.Get(ctx, "db/users.json", "")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(obj.Content) != `[{"id":"1"}]` {
		t.Errorf("content = %q", obj.Content)
	}
	if obj.Version != v1 {
		t.Errorf("version = %q, want %q", obj.Version, v1)
	}

	if _, err := g.Get(ctx, "db/users.json", v1); !errors.Is(err, ErrNotModified) {
		t.Fatalf("expected ErrNotModified, got %v", err)
	}

	v2, err := g.Put(ctx, "db/users.json", []byte(`[]`), v1)
	if err != nil {
		t.Fatalf("put v2: %v", err)
	}
	if v2 == v1 {
		t.Error("expected version to change")
	}
	if _, err := g.Put(ctx, "db/users.json", []byte(`[2]`), v1); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on stale version, got %v", err)
	}
}

func TestGitStorePutUnchangedContent(t *testing.T) {
	g, err := NewGitStore(t.TempDir(), "", "")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	v1, err := g.Put(ctx, "db/x.json", []byte(`[]`), "")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	// Re-writing identical bytes with the right version is a valid no-op.
	v2, err := g.Put(ctx, "db/x.json", []byte(`[]`), v1)
	if err != nil {
		t.Fatalf("unchanged put: %v", err)
	}
	if v2 != v1 {
		t.Errorf("version = %q, want unchanged %q", v2, v1)
	}
	if _, err := g.Put(ctx, "db/x.json", []byte(`[]`), "stale"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict with stale version, got %v", err)
	}
}

func TestGitStoreList(t *testing.T) {
	g, err := NewGitStore(t.TempDir(), "", "")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	for _, name := range []string{"users.json", "sessions.json"} {
		if _, err := g.Put(ctx, "db/"+name, []byte("[]"), ""); err != nil {
			t.Fatalf("put %s: %v", name, err)
		}
	}
	names, err := g.List(ctx, "db")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	slices.Sort(names)
	want := []string{"sessions.json", "users.json"}
	if !slices.Equal(names, want) {
		t.Errorf("list = %v, want %v", names, want)
	}
}
