// Implements an in-memory Store for tests and embedded use.

package blobstore

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
)

// MemStore is a Store holding blobs in process memory.
//
// Version tags are per-path sequence numbers, making version progression easy
// to assert on in tests. The zero value is not usable; call NewMemStore.
type MemStore struct {
	mu    sync.Mutex
	blobs map[string]memBlob
	puts  int
	gets  int
}

type memBlob struct {
	content []byte
	version string
	seq     int
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{blobs: make(map[string]memBlob)}
}

// Get implements Store.
func (m *MemStore) Get(_ context.Context, p, etag string) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	b, ok := m.blobs[p]
	if !ok {
		return nil, ErrNotFound
	}
	if etag != "" && etag == b.version {
		return nil, ErrNotModified
	}
	content := make([]byte, len(b.content))
	copy(content, b.content)
	return &Object{Content: content, Version: b.version, ETag: b.version}, nil
}

// Put implements Store.
func (m *MemStore) Put(_ context.Context, p string, content []byte, expectedVersion string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	b := m.blobs[p]
	if expectedVersion != b.version {
		return "", ErrConflict
	}
	b.seq++
	b.version = fmt.Sprintf("v%d", b.seq)
	b.content = make([]byte, len(content))
	copy(b.content, content)
	m.blobs[p] = b
	return b.version, nil
}

// List implements Store.
func (m *MemStore) List(_ context.Context, dir string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(dir, "/") + "/"
	var names []string
	for p := range m.blobs {
		if strings.HasPrefix(p, prefix) && !strings.Contains(strings.TrimPrefix(p, prefix), "/") {
			names = append(names, path.Base(p))
		}
	}
	return names, nil
}

// Gets returns the number of Get calls, for cache-freshness assertions.
func (m *MemStore) Gets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}

// Puts returns the number of Put calls.
func (m *MemStore) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}
