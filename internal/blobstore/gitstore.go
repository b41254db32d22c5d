// Implements Store over a local git repository using go-git (pure Go, no git
// binary dependency).

package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// GitStore is a Store backed by a git repository on the local filesystem.
//
// The version tag of a path is the git blob hash of the file at HEAD; every
// Put produces a commit, so the full history of each collection is retained
// and a stale expectedVersion is detected by comparing blob hashes.
type GitStore struct {
	dir   string
	name  string
	email string
	repo  *gogit.Repository
	mu    sync.Mutex
}

// NewGitStore opens the repository at dir, initializing it if needed.
func NewGitStore(dir, name, email string) (*GitStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create repo directory: %w", err)
	}
	if name == "" {
		name = "qurandb"
	}
	if email == "" {
		email = "qurandb@localhost"
	}

	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		// Not a repo yet, initialize one.
		repo, err = gogit.PlainInit(dir, false)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize git repo: %w", err)
		}
		cfg, err := repo.Config()
		if err != nil {
			return nil, fmt.Errorf("failed to read git config: %w", err)
		}
		cfg.User.Name = name
		cfg.User.Email = email
		if err := repo.SetConfig(cfg); err != nil {
			return nil, fmt.Errorf("failed to write git config: %w", err)
		}
	}

	return &GitStore{dir: dir, name: name, email: email, repo: repo}, nil
}

// headTree returns the tree at HEAD, or nil if the repository has no commits.
func (g *GitStore) headTree() (*object.Tree, error) {
	ref, err := g.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	commit, err := g.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD commit: %w", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD tree: %w", err)
	}
	return tree, nil
}

// fileAtHead returns the file at path in HEAD, or nil if absent.
func (g *GitStore) fileAtHead(path string) (*object.File, error) {
	tree, err := g.headTree()
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, nil
	}
	f, err := tree.File(path)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up %s: %w", path, err)
	}
	return f, nil
}

// Get implements Store.
func (g *GitStore) Get(_ context.Context, path, etag string) (*Object, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	f, err := g.fileAtHead(path)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, ErrNotFound
	}
	version := f.Hash.String()
	if etag != "" && etag == version {
		return nil, ErrNotModified
	}
	reader, err := f.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = reader.Close() }()
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return &Object{Content: content, Version: version, ETag: version}, nil
}

// Put implements Store.
func (g *GitStore) Put(_ context.Context, path string, content []byte, expectedVersion string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	current, err := g.fileAtHead(path)
	if err != nil {
		return "", err
	}
	currentVersion := ""
	if current != nil {
		currentVersion = current.Hash.String()
	}
	if expectedVersion != currentVersion {
		return "", ErrConflict
	}
	// Unchanged content would produce an empty commit; report success with
	// the current version instead.
	if current != nil && plumbing.ComputeHash(plumbing.BlobObject, content) == current.Hash {
		return currentVersion, nil
	}

	full := filepath.Join(g.dir, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	w, err := g.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree: %w", err)
	}
	if _, err := w.Add(path); err != nil {
		return "", fmt.Errorf("failed to stage %s: %w", path, err)
	}
	now := time.Now()
	sig := &object.Signature{Name: g.name, Email: g.email, When: now}
	msg := fmt.Sprintf("Update %s - %s", path, now.UTC().Format(time.RFC3339))
	if _, err := w.Commit(msg, &gogit.CommitOptions{Author: sig, Committer: sig}); err != nil {
		return "", fmt.Errorf("failed to commit %s: %w", path, err)
	}

	committed, err := g.fileAtHead(path)
	if err != nil {
		return "", err
	}
	if committed == nil {
		return "", fmt.Errorf("file %s missing after commit", path)
	}
	return committed.Hash.String(), nil
}

// List implements Store.
func (g *GitStore) List(_ context.Context, dir string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	tree, err := g.headTree()
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, nil
	}
	sub := tree
	if dir != "" && dir != "." {
		sub, err = tree.Tree(dir)
		if err != nil {
			return nil, nil
		}
	}
	var names []string
	for _, entry := range sub.Entries {
		if entry.Mode.IsFile() {
			names = append(names, entry.Name)
		}
	}
	return names, nil
}
