// Package docstore is an embedded document database persisting JSON
// collections in a version-controlled blob store.
//
// # Overview
//
// A [Store] manages named collections, each a JSON array of dynamic
// documents stored at {basePath}/{collection}.json in a [blobstore.Store].
// Reads go through a per-collection cache with a freshness window and
// conditional fetches; all mutations are funneled through a single FIFO
// write queue that re-reads the remote version before each write and retries
// on version conflict with exponential backoff, so concurrent writers are
// serialized rather than silently overwriting each other.
//
// # Concurrency: Optimistic Writes
//
// [Store.save] updates the cache immediately (readers see the pending state)
// and resolves only once the write is durable. The local optimistic view may
// temporarily diverge from the durable remote state; the pending flag on the
// cache entry makes the two phases observable.
package docstore

import (
	"encoding/json"
	"strconv"
	"time"
)

// Reserved document fields assigned by the store.
const (
	FieldID        = "id"
	FieldUID       = "uid"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// Document is one JSON record within a collection: a dynamic key/value map
// with reserved id/uid/createdAt/updatedAt fields. All other fields are
// collection-specific and validated only against an optional [Schema].
type Document map[string]any

// ID returns the store-assigned decimal id, or "" if unset.
func (d Document) ID() string {
	s, _ := d[FieldID].(string)
	return s
}

// UID returns the globally unique id assigned at creation, or "" if unset.
func (d Document) UID() string {
	s, _ := d[FieldUID].(string)
	return s
}

// String returns the string value of key, or "" if absent or not a string.
func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// Bool returns the boolean value of key, or false if absent or not a bool.
func (d Document) Bool(key string) bool {
	b, _ := d[key].(bool)
	return b
}

// Strings returns the value of key as a string slice. JSON decoding yields
// []any, so both representations are accepted.
func (d Document) Strings(key string) []string {
	switch v := d[key].(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Int64 returns the value of key as an int64, accepting the numeric types
// JSON decoding and callers produce.
func (d Document) Int64(key string) int64 {
	switch v := d[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	}
	return 0
}

// Matches reports whether key equals the document's id or uid.
func (d Document) Matches(key string) bool {
	return key != "" && (d.ID() == key || d.UID() == key)
}

// numericID parses the document's id as an integer, returning 0 for
// non-numeric or missing ids.
func (d Document) numericID() int {
	n, err := strconv.Atoi(d.ID())
	if err != nil {
		return 0
	}
	return n
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneValue(d).(Document)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Document:
		c := make(Document, len(t))
		for k, e := range t {
			c[k] = cloneValue(e)
		}
		return c
	case map[string]any:
		c := make(map[string]any, len(t))
		for k, e := range t {
			c[k] = cloneValue(e)
		}
		return c
	case []any:
		c := make([]any, len(t))
		for i, e := range t {
			c[i] = cloneValue(e)
		}
		return c
	case []string:
		c := make([]string, len(t))
		copy(c, t)
		return c
	default:
		return v
	}
}

func cloneDocuments(docs []Document) []Document {
	out := make([]Document, len(docs))
	for i, d := range docs {
		out[i] = d.Clone()
	}
	return out
}

// nextID computes the next decimal id: one more than the maximum numeric id
// currently present, starting at 1 for an empty collection.
func nextID(docs []Document, offset int) string {
	maxID := 0
	for _, d := range docs {
		if n := d.numericID(); n > maxID {
			maxID = n
		}
	}
	return strconv.Itoa(maxID + offset + 1)
}

// timestamp formats t the way documents store createdAt/updatedAt.
func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
