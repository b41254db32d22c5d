// Implements per-collection required-field and type validation.

package docstore

import (
	"time"

	"github.com/ridwanullahh/qurandb/internal/models"
)

// Kind is the declared runtime kind of a schema field.
type Kind string

// Field kinds a schema may declare.
const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
	KindDate    Kind = "date"
	KindUUID    Kind = "uuid"
)

// Schema declares the optional shape of a collection's documents.
type Schema struct {
	// Required fields must be present and non-null.
	Required []string `json:"required,omitempty" yaml:"required,omitempty"`
	// Types maps field names to their expected kind. Fields without a
	// declared kind are unchecked.
	Types map[string]Kind `json:"types,omitempty" yaml:"types,omitempty"`
	// Defaults are merged into a document at insert time; caller values win.
	Defaults map[string]any `json:"defaults,omitempty" yaml:"defaults,omitempty"`
}

// applyDefaults returns doc with missing defaulted fields filled in.
// The input is not modified.
func (s *Schema) applyDefaults(doc Document) Document {
	if s == nil || len(s.Defaults) == 0 {
		return doc.Clone()
	}
	merged := make(Document, len(doc)+len(s.Defaults))
	for k, v := range s.Defaults {
		merged[k] = cloneValue(v)
	}
	for k, v := range doc {
		merged[k] = cloneValue(v)
	}
	return merged
}

// Validate checks required fields and declared kinds. A nil schema accepts
// everything.
func (s *Schema) Validate(doc Document) error {
	if s == nil {
		return nil
	}
	for _, field := range s.Required {
		if v, ok := doc[field]; !ok || v == nil {
			return models.MissingField(field)
		}
	}
	for field, value := range doc {
		if value == nil {
			continue
		}
		kind, ok := s.Types[field]
		if !ok {
			continue
		}
		if !matchesKind(value, kind) {
			return models.TypeMismatch(field, string(kind))
		}
	}
	return nil
}

// dateLayouts are accepted by the date kind, most specific first.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func matchesKind(value any, kind Kind) bool {
	switch kind {
	case KindString, KindUUID:
		// uuid values are treated as plain strings.
		_, ok := value.(string)
		return ok
	case KindNumber:
		switch value.(type) {
		case float64, float32, int, int32, int64:
			return true
		}
		return false
	case KindBoolean:
		_, ok := value.(bool)
		return ok
	case KindObject:
		switch value.(type) {
		case map[string]any, Document:
			return true
		}
		return false
	case KindArray:
		switch value.(type) {
		case []any, []string, []float64:
			return true
		}
		return false
	case KindDate:
		switch v := value.(type) {
		case time.Time:
			return true
		case string:
			for _, layout := range dateLayouts {
				if _, err := time.Parse(layout, v); err == nil {
					return true
				}
			}
			return false
		}
		return false
	default:
		// Unknown kinds are not enforced.
		return true
	}
}
