package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/ridwanullahh/qurandb/internal/blobstore"
	"github.com/ridwanullahh/qurandb/internal/models"
)

// Defaults for the tunable store intervals.
const (
	DefaultFreshnessWindow = 5 * time.Second
	DefaultPollInterval    = 5 * time.Second
	DefaultRetryBase       = 100 * time.Millisecond
	DefaultMaxRetries      = 5
)

// cacheEntry is the in-memory mirror of one collection blob.
type cacheEntry struct {
	data []Document
	// etag is the validator from the last read, used for conditional gets.
	// Cleared after a write because the remote validator is unknown then.
	etag    string
	version string
	// fetchedAt stamps when data was last confirmed against the remote.
	fetchedAt time.Time
	// pending means local writes are queued; reads serve the optimistic
	// data without revalidating until the queue drains.
	pending bool
}

// Store is a collection-oriented document database over a versioned blob
// store. Each collection is one JSON array blob. Reads go through a
// freshness-windowed cache with conditional gets; writes funnel through a
// single FIFO queue with optimistic concurrency (see queue.go).
type Store struct {
	blobs    blobstore.Store
	basePath string

	// FreshnessWindow bounds how stale a cached collection may be before a
	// read revalidates against the remote.
	FreshnessWindow time.Duration
	// PollInterval is the subscription poll period.
	PollInterval time.Duration
	// RetryBase is the unit for exponential conflict backoff.
	RetryBase time.Duration
	// MaxRetries caps conflict retries for a single queued write.
	MaxRetries int

	now func() time.Time

	mu          sync.Mutex
	cache       map[string]*cacheEntry
	schemas     map[string]*Schema
	initialized bool

	queueMu   sync.Mutex
	queue     []*queuedWrite
	queueBusy bool

	subMu     sync.Mutex
	subs      map[string]map[int]func([]Document)
	pollers   map[string]*poller
	nextSubID int

	audit *auditLog
	log   *slog.Logger
}

// New returns a Store persisting collections under basePath in blobs.
func New(blobs blobstore.Store, basePath string, l *slog.Logger) *Store {
	if l == nil {
		l = slog.Default()
	}
	return &Store{
		blobs:           blobs,
		basePath:        basePath,
		FreshnessWindow: DefaultFreshnessWindow,
		PollInterval:    DefaultPollInterval,
		RetryBase:       DefaultRetryBase,
		MaxRetries:      DefaultMaxRetries,
		now:             time.Now,
		cache:           map[string]*cacheEntry{},
		schemas:         map[string]*Schema{},
		subs:            map[string]map[int]func([]Document){},
		pollers:         map[string]*poller{},
		audit:           newAuditLog(),
		log:             l,
	}
}

// SetSchema registers (or replaces) the schema applied to writes into
// collection. A nil schema removes validation for the collection.
func (s *Store) SetSchema(collection string, sc *Schema) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sc == nil {
		delete(s.schemas, collection)
		return
	}
	s.schemas[collection] = sc
}

func (s *Store) schemaFor(collection string) *Schema {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schemas[collection]
}

func (s *Store) pathFor(collection string) string {
	return path.Join(s.basePath, collection+".json")
}

// ensureInitialized creates the base directory marker on first use so that
// List works against stores that reject empty directories.
func (s *Store) ensureInitialized(ctx context.Context) error {
	s.mu.Lock()
	done := s.initialized
	s.mu.Unlock()
	if done {
		return nil
	}
	marker := path.Join(s.basePath, ".gitkeep")
	_, err := s.blobs.Get(ctx, marker, "")
	if err == blobstore.ErrNotFound {
		_, err = s.blobs.Put(ctx, marker, nil, "")
		if err == blobstore.ErrConflict {
			// Someone else created it between our read and write.
			err = nil
		}
	}
	if err != nil {
		return models.Network("initializing store", err)
	}
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
	return nil
}

// Get returns the documents in collection. Cached data inside the freshness
// window, or shadowed by pending writes, is served without a network round
// trip; otherwise the remote is revalidated with a conditional get. A
// collection that does not exist yet reads as empty.
func (s *Store) Get(ctx context.Context, collection string) ([]Document, error) {
	return s.get(ctx, collection, false)
}

func (s *Store) get(ctx context.Context, collection string, force bool) ([]Document, error) {
	if err := s.ensureInitialized(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	e := s.cache[collection]
	// Pending local writes shadow the remote even for forced reads; the
	// queue confirms or fails them before the cache is trusted again.
	if e != nil && (e.pending || (!force && s.now().Sub(e.fetchedAt) < s.FreshnessWindow)) {
		docs := cloneDocuments(e.data)
		s.mu.Unlock()
		return docs, nil
	}
	var etag string
	if e != nil {
		etag = e.etag
	}
	s.mu.Unlock()

	obj, err := s.blobs.Get(ctx, s.pathFor(collection), etag)
	switch err {
	case nil:
		var docs []Document
		if len(obj.Content) > 0 {
			if err := json.Unmarshal(obj.Content, &docs); err != nil {
				return nil, models.Internal(fmt.Sprintf("collection %q is not a JSON array: %s", collection, err))
			}
		}
		s.storeCache(collection, docs, obj.ETag, obj.Version)
		s.notify(collection, docs)
		return cloneDocuments(docs), nil
	case blobstore.ErrNotModified:
		s.mu.Lock()
		var docs []Document
		if e := s.cache[collection]; e != nil {
			e.fetchedAt = s.now()
			docs = cloneDocuments(e.data)
		}
		s.mu.Unlock()
		return docs, nil
	case blobstore.ErrNotFound:
		s.storeCache(collection, nil, "", "")
		return nil, nil
	default:
		return nil, models.Network(fmt.Sprintf("reading collection %q", collection), err)
	}
}

func (s *Store) storeCache(collection string, docs []Document, etag, version string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[collection] = &cacheEntry{
		data:      docs,
		etag:      etag,
		version:   version,
		fetchedAt: s.now(),
	}
}

// Audit returns the recorded mutation history for collection, oldest first.
func (s *Store) Audit(collection string) []AuditEntry {
	return s.audit.get(collection)
}

// Status reports queue depth and per-collection cache ages, for health
// endpoints and debugging.
type Status struct {
	QueueLength int            `json:"queueLength"`
	Collections map[string]int `json:"collections"`
	CacheAges   map[string]int `json:"cacheAgesMs"`
}

// Status snapshots the store's runtime state.
func (s *Store) Status() Status {
	st := Status{Collections: map[string]int{}, CacheAges: map[string]int{}}
	s.queueMu.Lock()
	st.QueueLength = len(s.queue)
	s.queueMu.Unlock()
	s.mu.Lock()
	now := s.now()
	for name, e := range s.cache {
		st.Collections[name] = len(e.data)
		st.CacheAges[name] = int(now.Sub(e.fetchedAt) / time.Millisecond)
	}
	s.mu.Unlock()
	return st
}
