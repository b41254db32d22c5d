package blobstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakeContents emulates the subset of the GitHub Contents API the client
// uses: conditional GET with ETag, PUT with sha checking, 404 on missing
// paths.
type fakeContents struct {
	mu    sync.Mutex
	files map[string]fakeFile
	seq   int
}

type fakeFile struct {
	content []byte
	sha     string
}

func newFakeContents() *fakeContents {
	return &fakeContents{files: make(map[string]fakeFile)}
}

func (f *fakeContents) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("missing auth header: %q", r.Header.Get("Authorization"))
		}
		path := r.URL.Path[len("/repos/o/r/contents/"):]

		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			file, ok := f.files[path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			etag := `"` + file.sha + `"`
			if r.Header.Get("If-None-Match") == etag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
			w.Header().Set("ETag", etag)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"name":    path,
				"type":    "file",
				"content": base64.StdEncoding.EncodeToString(file.content),
				"sha":     file.sha,
			})
		case http.MethodPut:
			var req struct {
				Content string `json:"content"`
				SHA     string `json:"sha"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("bad PUT body: %v", err)
			}
			existing := f.files[path]
			if req.SHA != existing.sha {
				w.WriteHeader(http.StatusConflict)
				return
			}
			content, err := base64.StdEncoding.DecodeString(req.Content)
			if err != nil {
				t.Errorf("bad PUT content: %v", err)
			}
			f.seq++
			file := fakeFile{content: content, sha: fmt.Sprintf("sha%d", f.seq)}
			f.files[path] = file
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"content": map[string]any{"sha": file.sha},
			})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

func newTestGitHub(t *testing.T) (*GitHub, *fakeContents) {
	fake := newFakeContents()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	g := NewGitHub("o", "r", "main", StaticToken("test-token"))
	g.APIBase = srv.URL
	return g, fake
}

func TestGitHubGetNotFound(t *testing.T) {
	g, _ := newTestGitHub(t)
	if _, err := g.Get(context.Background(), "db/missing.json", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGitHubPutGetRoundTrip(t *testing.T) {
	g, _ := newTestGitHub(t)
	ctx := context.Background()

	version, err := g.Put(ctx, "db/users.json", []byte(`[]`), "")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if version == "" {
		t.Fatal("expected non-empty version")
	}

	obj, err := g.Get(ctx, "db/users.json", "")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(obj.Content) != `[]` {
		t.Errorf("content = %q", obj.Content)
	}
	if obj.Version != version {
		t.Errorf("version = %q, want %q", obj.Version, version)
	}

	// Conditional read with the returned etag is a cache hit.
	if _, err := g.Get(ctx, "db/users.json", obj.ETag); !errors.Is(err, ErrNotModified) {
		t.Fatalf("expected ErrNotModified, got %v", err)
	}
}

func TestGitHubPutStaleVersionConflicts(t *testing.T) {
	g, _ := newTestGitHub(t)
	ctx := context.Background()

	v1, err := g.Put(ctx, "db/users.json", []byte(`[1]`), "")
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := g.Put(ctx, "db/users.json", []byte(`[2]`), v1); err != nil {
		t.Fatalf("put with current version: %v", err)
	}
	// v1 is now stale.
	if _, err := g.Put(ctx, "db/users.json", []byte(`[3]`), v1); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	// Create on an existing path is also a conflict.
	if _, err := g.Put(ctx, "db/users.json", []byte(`[4]`), ""); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on blind create, got %v", err)
	}
}
