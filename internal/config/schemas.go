package config

import "github.com/ridwanullahh/qurandb/internal/docstore"

// DefaultSchemas returns the built-in collection schemas. Entries in the
// config file's schemas map replace these per collection.
//
// Only users has a required set; the content collections validate field
// types when present but accept partial documents.
func DefaultSchemas() map[string]*docstore.Schema {
	return map[string]*docstore.Schema{
		"users": {
			Required: []string{"email"},
			Types: map[string]docstore.Kind{
				"email":       docstore.KindString,
				"password":    docstore.KindString,
				"name":        docstore.KindString,
				"verified":    docstore.KindBoolean,
				"roles":       docstore.KindArray,
				"permissions": docstore.KindArray,
			},
			Defaults: map[string]any{
				"verified":    false,
				"roles":       []any{"user"},
				"permissions": []any{},
			},
		},
		"sessions": {
			Types: map[string]docstore.Kind{
				"token":   docstore.KindString,
				"userId":  docstore.KindString,
				"created": docstore.KindNumber,
				"expires": docstore.KindNumber,
			},
		},
		"surahs": {
			Types: map[string]docstore.Kind{
				"number":         docstore.KindNumber,
				"name":           docstore.KindString,
				"nameArabic":     docstore.KindString,
				"revelationType": docstore.KindString,
				"versesCount":    docstore.KindNumber,
			},
		},
		"translations": {
			Types: map[string]docstore.Kind{
				"surahNumber": docstore.KindNumber,
				"verseNumber": docstore.KindNumber,
				"language":    docstore.KindString,
				"text":        docstore.KindString,
				"translator":  docstore.KindString,
			},
		},
		"transliterations": {
			Types: map[string]docstore.Kind{
				"surahNumber": docstore.KindNumber,
				"verseNumber": docstore.KindNumber,
				"wordIndex":   docstore.KindNumber,
				"text":        docstore.KindString,
			},
		},
		"tafseer": {
			Types: map[string]docstore.Kind{
				"surahNumber": docstore.KindNumber,
				"verseNumber": docstore.KindNumber,
				"language":    docstore.KindString,
				"text":        docstore.KindString,
				"scholar":     docstore.KindString,
			},
		},
		"morphology": {
			Types: map[string]docstore.Kind{
				"surahNumber": docstore.KindNumber,
				"verseNumber": docstore.KindNumber,
				"wordIndex":   docstore.KindNumber,
				"root":        docstore.KindString,
				"lemma":       docstore.KindString,
				"pos":         docstore.KindString,
			},
		},
		"bookmarks": {
			Types: map[string]docstore.Kind{
				"userId":      docstore.KindString,
				"surahNumber": docstore.KindNumber,
				"verseNumber": docstore.KindNumber,
				"note":        docstore.KindString,
			},
		},
		"progress": {
			Types: map[string]docstore.Kind{
				"userId":      docstore.KindString,
				"surahNumber": docstore.KindNumber,
				"verseNumber": docstore.KindNumber,
				"status":      docstore.KindString,
				"memorizedAt": docstore.KindString,
			},
		},
		"settings": {
			Types: map[string]docstore.Kind{
				"userId":              docstore.KindString,
				"theme":               docstore.KindString,
				"fontSize":            docstore.KindNumber,
				"fontFamily":          docstore.KindString,
				"showTranslation":     docstore.KindBoolean,
				"showTransliteration": docstore.KindBoolean,
				"reciter":             docstore.KindString,
			},
		},
	}
}
