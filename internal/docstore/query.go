package docstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Direction orders a sorted field.
type Direction int

// Sort directions.
const (
	Asc Direction = iota
	Desc
)

type sortSpec struct {
	field string
	dir   Direction
}

// Query builds a collection read lazily. Nothing touches the store until
// Exec, Count or First runs; the same Query can be executed repeatedly.
type Query struct {
	s          *Store
	collection string
	filters    []func(Document) bool
	sorts      []sortSpec
	limit      int
	hasLimit   bool
	offset     int
	projection []string
}

// Query starts a lazy query over collection.
func (s *Store) Query(collection string) *Query {
	return &Query{s: s, collection: collection}
}

// Where keeps only documents for which pred returns true. Multiple Where
// calls AND together.
func (q *Query) Where(pred func(Document) bool) *Query {
	q.filters = append(q.filters, pred)
	return q
}

// Eq keeps documents whose field equals value, compared loosely across
// numeric kinds.
func (q *Query) Eq(field string, value any) *Query {
	return q.Where(func(d Document) bool {
		return compareValues(d[field], value) == 0
	})
}

// Sort orders results by field. Later Sort calls break ties from earlier
// ones.
func (q *Query) Sort(field string, dir Direction) *Query {
	q.sorts = append(q.sorts, sortSpec{field: field, dir: dir})
	return q
}

// Limit caps the number of results. Count ignores it.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	q.hasLimit = true
	return q
}

// Offset skips the first n results after sorting. Count ignores it.
func (q *Query) Offset(n int) *Query {
	q.offset = n
	return q
}

// Project keeps only the named fields in each result.
func (q *Query) Project(fields ...string) *Query {
	q.projection = append(q.projection, fields...)
	return q
}

// Exec runs the query: filter, sort, offset, limit, project, in that order.
func (q *Query) Exec(ctx context.Context) ([]Document, error) {
	docs, err := q.matches(ctx)
	if err != nil {
		return nil, err
	}
	if len(q.sorts) > 0 {
		sort.SliceStable(docs, func(i, j int) bool {
			for _, sp := range q.sorts {
				c := compareValues(docs[i][sp.field], docs[j][sp.field])
				if sp.dir == Desc {
					c = -c
				}
				if c != 0 {
					return c < 0
				}
			}
			return false
		})
	}
	if q.offset > 0 {
		if q.offset >= len(docs) {
			docs = nil
		} else {
			docs = docs[q.offset:]
		}
	}
	if q.hasLimit && q.limit < len(docs) {
		docs = docs[:q.limit]
	}
	if len(q.projection) > 0 {
		projected := make([]Document, len(docs))
		for i, d := range docs {
			p := make(Document, len(q.projection))
			for _, f := range q.projection {
				if v, ok := d[f]; ok {
					p[f] = v
				}
			}
			projected[i] = p
		}
		docs = projected
	}
	return docs, nil
}

// Count returns how many documents pass the filters. Limit and Offset do
// not apply.
func (q *Query) Count(ctx context.Context) (int, error) {
	docs, err := q.matches(ctx)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

// First returns the first result, or nil when nothing matches.
func (q *Query) First(ctx context.Context) (Document, error) {
	docs, err := q.Exec(ctx)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

func (q *Query) matches(ctx context.Context) ([]Document, error) {
	docs, err := q.s.Get(ctx, q.collection)
	if err != nil {
		return nil, err
	}
	out := docs[:0:0]
	for _, d := range docs {
		keep := true
		for _, f := range q.filters {
			if !f(d) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, d)
		}
	}
	return out, nil
}

// compareValues orders two document field values. Numbers compare
// numerically across int and float kinds, times chronologically, everything
// else by string form. Missing values sort first.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if na, ok := asFloat(a); ok {
		if nb, ok := asFloat(b); ok {
			switch {
			case na < nb:
				return -1
			case na > nb:
				return 1
			default:
				return 0
			}
		}
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ba == bb:
				return 0
			case !ba:
				return -1
			default:
				return 1
			}
		}
	}
	if ta, ok := asTime(a); ok {
		if tb, ok := asTime(b); ok {
			return ta.Compare(tb)
		}
	}
	return strings.Compare(toString(a), toString(b))
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
