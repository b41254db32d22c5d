package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/ridwanullahh/qurandb/internal/blobstore"
	"github.com/ridwanullahh/qurandb/internal/models"
)

// ExportCollection returns the collection serialized as an indented JSON
// array, suitable for backups and fixtures.
func (s *Store) ExportCollection(ctx context.Context, collection string) ([]byte, error) {
	docs, err := s.Get(ctx, collection)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []Document{}
	}
	content, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return nil, models.Internal(fmt.Sprintf("encoding collection %q: %s", collection, err))
	}
	return content, nil
}

// ImportCollection loads a JSON array of documents into collection. With
// overwrite the existing contents are replaced; otherwise the documents are
// appended through BulkInsert, which revalidates and reassigns ids.
func (s *Store) ImportCollection(ctx context.Context, collection string, content []byte, overwrite bool) (int, error) {
	var docs []Document
	if err := json.Unmarshal(content, &docs); err != nil {
		return 0, models.Validation(fmt.Sprintf("import for %q is not a JSON array of documents: %s", collection, err))
	}
	if overwrite {
		if err := s.save(ctx, collection, docs); err != nil {
			return 0, err
		}
		return len(docs), nil
	}
	inserted, err := s.BulkInsert(ctx, collection, docs)
	if err != nil {
		return 0, err
	}
	return len(inserted), nil
}

// ListCollections names every collection present in the store, sorted.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	if err := s.ensureInitialized(ctx); err != nil {
		return nil, err
	}
	files, err := s.blobs.List(ctx, s.basePath)
	if err == blobstore.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, models.Network("listing collections", err)
	}
	var names []string
	for _, f := range files {
		base := path.Base(f)
		if strings.HasSuffix(base, ".json") {
			names = append(names, strings.TrimSuffix(base, ".json"))
		}
	}
	sort.Strings(names)
	return names, nil
}
