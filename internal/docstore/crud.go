package docstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ridwanullahh/qurandb/internal/models"
)

// Insert validates item against the collection schema, assigns the reserved
// fields and appends it. Fields supplied in item win over generated ones, so
// callers may pin their own id or uid. Returns the stored document.
func (s *Store) Insert(ctx context.Context, collection string, item Document) (Document, error) {
	docs, err := s.Get(ctx, collection)
	if err != nil {
		return nil, err
	}
	doc, err := s.newDocument(collection, docs, item, 0)
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, collection, append(docs, doc)); err != nil {
		return nil, err
	}
	s.audit.record(collection, ActionInsert, doc, s.now())
	return doc.Clone(), nil
}

// BulkInsert appends items in order with consecutive ids, persisting the
// collection once. Either all items are stored or none are.
func (s *Store) BulkInsert(ctx context.Context, collection string, items []Document) ([]Document, error) {
	docs, err := s.Get(ctx, collection)
	if err != nil {
		return nil, err
	}
	inserted := make([]Document, 0, len(items))
	next := docs
	for i, item := range items {
		doc, err := s.newDocument(collection, docs, item, i)
		if err != nil {
			return nil, err
		}
		inserted = append(inserted, doc)
		next = append(next, doc)
	}
	if err := s.save(ctx, collection, next); err != nil {
		return nil, err
	}
	now := s.now()
	for _, doc := range inserted {
		s.audit.record(collection, ActionInsert, doc, now)
	}
	return cloneDocuments(inserted), nil
}

func (s *Store) newDocument(collection string, existing []Document, item Document, offset int) (Document, error) {
	sc := s.schemaFor(collection)
	ts := timestamp(s.now())
	doc := Document{
		FieldID:        nextID(existing, offset),
		FieldUID:       uuid.NewString(),
		FieldCreatedAt: ts,
		FieldUpdatedAt: ts,
	}
	for k, v := range sc.applyDefaults(item) {
		doc[k] = cloneValue(v)
	}
	if err := sc.Validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Update merges updates into the document matching key (id or uid) and
// persists the collection. The remote is re-read first so the merge applies
// to current data. Returns the updated document or a not found error.
func (s *Store) Update(ctx context.Context, collection, key string, updates Document) (Document, error) {
	docs, err := s.get(ctx, collection, true)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, d := range docs {
		if d.Matches(key) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, models.NotFound(fmt.Sprintf("no document %q in collection %q", key, collection))
	}
	doc := docs[idx].Clone()
	for k, v := range updates {
		if k == FieldID || k == FieldUID {
			continue
		}
		doc[k] = cloneValue(v)
	}
	doc[FieldUpdatedAt] = timestamp(s.now())
	if err := s.schemaFor(collection).Validate(doc); err != nil {
		return nil, err
	}
	docs[idx] = doc
	if err := s.save(ctx, collection, docs); err != nil {
		return nil, err
	}
	s.audit.record(collection, ActionUpdate, doc, s.now())
	return doc.Clone(), nil
}

// Upsert updates the document matching key, or inserts item with key as its
// id if no document matches.
func (s *Store) Upsert(ctx context.Context, collection, key string, item Document) (Document, error) {
	doc, err := s.Update(ctx, collection, key, item)
	if err == nil {
		return doc, nil
	}
	if models.IsCode(err, models.ErrorCodeNotFound) {
		item = item.Clone()
		item[FieldID] = key
		return s.Insert(ctx, collection, item)
	}
	return nil, err
}

// Delete removes the document matching key (id or uid). Deleting a missing
// document is an error.
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	docs, err := s.get(ctx, collection, true)
	if err != nil {
		return err
	}
	kept := docs[:0:0]
	var removed []Document
	for _, d := range docs {
		if d.Matches(key) {
			removed = append(removed, d)
			continue
		}
		kept = append(kept, d)
	}
	if len(removed) == 0 {
		return models.NotFound(fmt.Sprintf("no document %q in collection %q", key, collection))
	}
	if err := s.save(ctx, collection, kept); err != nil {
		return err
	}
	now := s.now()
	for _, d := range removed {
		s.audit.record(collection, ActionDelete, d, now)
	}
	return nil
}

// BulkDelete removes every document for which match returns true and reports
// how many were removed. Removing nothing is not an error.
func (s *Store) BulkDelete(ctx context.Context, collection string, match func(Document) bool) (int, error) {
	docs, err := s.get(ctx, collection, true)
	if err != nil {
		return 0, err
	}
	kept := docs[:0:0]
	var removed []Document
	for _, d := range docs {
		if match(d) {
			removed = append(removed, d)
			continue
		}
		kept = append(kept, d)
	}
	if len(removed) == 0 {
		return 0, nil
	}
	if err := s.save(ctx, collection, kept); err != nil {
		return 0, err
	}
	now := s.now()
	for _, d := range removed {
		s.audit.record(collection, ActionDelete, d, now)
	}
	return len(removed), nil
}

// GetItem returns the document matching key (id or uid).
func (s *Store) GetItem(ctx context.Context, collection, key string) (Document, error) {
	docs, err := s.Get(ctx, collection)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if d.Matches(key) {
			return d.Clone(), nil
		}
	}
	return nil, models.NotFound(fmt.Sprintf("no document %q in collection %q", key, collection))
}
