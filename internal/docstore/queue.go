package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ridwanullahh/qurandb/internal/blobstore"
	"github.com/ridwanullahh/qurandb/internal/models"
)

// queuedWrite is one pending collection overwrite.
type queuedWrite struct {
	ctx        context.Context
	collection string
	data       []Document
	retries    int
	enqueuedAt time.Time
	done       chan error
}

// save replaces the full contents of collection. The cache is updated
// optimistically so subsequent reads observe the write immediately, then the
// write is enqueued behind any in-flight ones and save blocks until it has
// been persisted or given up on.
//
// All writes, across all collections, execute one at a time in FIFO order.
// On a version conflict the writer re-reads the remote version and retries
// with exponential backoff up to MaxRetries times before failing the write.
func (s *Store) save(ctx context.Context, collection string, docs []Document) error {
	if err := s.ensureInitialized(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	e := s.cache[collection]
	if e == nil {
		e = &cacheEntry{}
		s.cache[collection] = e
	}
	e.data = cloneDocuments(docs)
	e.fetchedAt = s.now()
	e.pending = true
	s.mu.Unlock()
	s.notify(collection, docs)

	w := &queuedWrite{
		ctx:        ctx,
		collection: collection,
		data:       cloneDocuments(docs),
		enqueuedAt: s.now(),
		done:       make(chan error, 1),
	}
	s.queueMu.Lock()
	s.queue = append(s.queue, w)
	busy := s.queueBusy
	s.queueBusy = true
	s.queueMu.Unlock()
	if !busy {
		go s.drainQueue()
	}

	select {
	case err := <-w.done:
		return err
	case <-ctx.Done():
		// The write stays queued; it will still be persisted.
		return ctx.Err()
	}
}

// drainQueue processes queued writes until the queue is empty. At most one
// instance runs at a time.
func (s *Store) drainQueue() {
	for {
		s.queueMu.Lock()
		if len(s.queue) == 0 {
			s.queueBusy = false
			s.queueMu.Unlock()
			return
		}
		w := s.queue[0]
		s.queueMu.Unlock()

		err := s.flush(w)
		if err == blobstore.ErrConflict && w.retries < s.MaxRetries {
			w.retries++
			time.Sleep(s.RetryBase << w.retries)
			continue
		}
		s.pop(w)
		switch {
		case err == nil:
			w.done <- nil
		case err == blobstore.ErrConflict:
			s.log.Warn("docstore", "collection", w.collection, "retries", w.retries, "err", "write conflict, giving up")
			w.done <- models.Conflict(fmt.Sprintf("collection %q changed concurrently", w.collection)).Wrap(err)
		default:
			w.done <- err
		}
	}
}

// flush attempts one write of w against the current remote version.
func (s *Store) flush(w *queuedWrite) error {
	ctx := w.ctx
	if ctx.Err() != nil {
		// The caller is gone but the write was promised; finish it.
		ctx = context.Background()
	}
	p := s.pathFor(w.collection)
	var version string
	obj, err := s.blobs.Get(ctx, p, "")
	switch err {
	case nil:
		version = obj.Version
	case blobstore.ErrNotFound:
		// First write creates the blob.
	default:
		// A failed pre-read is not fatal; the write itself decides.
		s.log.Warn("docstore", "collection", w.collection, "err", err)
	}
	content, err := json.MarshalIndent(w.data, "", "  ")
	if err != nil {
		return models.Internal(fmt.Sprintf("encoding collection %q: %s", w.collection, err))
	}
	newVersion, err := s.blobs.Put(ctx, p, content, version)
	if err == blobstore.ErrConflict {
		return err
	}
	if err != nil {
		return models.Network(fmt.Sprintf("writing collection %q", w.collection), err)
	}
	s.confirm(w.collection, newVersion)
	return nil
}

// pop removes w from the head of the queue.
func (s *Store) pop(w *queuedWrite) {
	s.queueMu.Lock()
	if len(s.queue) > 0 && s.queue[0] == w {
		s.queue = s.queue[1:]
	}
	remaining := false
	for _, q := range s.queue {
		if q.collection == w.collection {
			remaining = true
			break
		}
	}
	s.queueMu.Unlock()
	if !remaining {
		s.mu.Lock()
		if e := s.cache[w.collection]; e != nil {
			e.pending = false
		}
		s.mu.Unlock()
	}
}

// confirm records the persisted version for collection. The etag is cleared
// because the write response carries no read validator.
func (s *Store) confirm(collection, version string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.cache[collection]
	if e == nil {
		e = &cacheEntry{}
		s.cache[collection] = e
	}
	e.version = version
	e.etag = ""
	e.fetchedAt = s.now()
}
