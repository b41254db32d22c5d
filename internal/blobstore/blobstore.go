// Package blobstore provides path-addressed, version-checked blob storage.
//
// # Contract
//
// A [Store] offers conditional reads and compare-and-swap writes. Every stored
// blob carries an opaque version tag representing its exact content (a GitHub
// blob sha, a git object hash, or a synthetic counter). A [Store.Put] whose
// expectedVersion no longer matches the store's current version fails with
// [ErrConflict]; this is the only concurrency-control primitive the data
// layer relies on.
//
// Implementations: [GitHub] (the GitHub Contents API), [GitStore] (a local
// git repository via go-git), and [MemStore] (in-memory, for tests and
// embedded use).
package blobstore

import (
	"context"
	"errors"
)

// Object is the result of a successful read.
type Object struct {
	// Content is the raw blob content.
	Content []byte
	// Version is the store-assigned content version tag, required to perform
	// a safe write of this path.
	Version string
	// ETag is the transport entity tag for conditional reads, when the
	// backend provides one distinct from Version.
	ETag string
}

var (
	// ErrNotFound is returned by Get and Put when the path does not exist.
	ErrNotFound = errors.New("blob not found")
	// ErrNotModified is returned by a conditional Get whose etag still matches.
	ErrNotModified = errors.New("blob not modified")
	// ErrConflict is returned by Put when expectedVersion no longer matches
	// the store's current version for the path.
	ErrConflict = errors.New("blob version conflict")
)

// Store is the contract the data layer requires from a blob backend.
type Store interface {
	// Get retrieves the blob at path. A non-empty etag makes the read
	// conditional: if the content is unchanged, Get returns (nil,
	// ErrNotModified). A missing path returns (nil, ErrNotFound).
	Get(ctx context.Context, path, etag string) (*Object, error)

	// Put writes content at path and returns the new version tag.
	// A non-empty expectedVersion must match the store's current version or
	// Put fails with ErrConflict. An empty expectedVersion creates the path
	// and fails with ErrConflict if it already exists.
	Put(ctx context.Context, path string, content []byte, expectedVersion string) (string, error)

	// List returns the file names directly under dir. A missing dir returns
	// an empty slice, not an error.
	List(ctx context.Context, dir string) ([]string, error)
}
