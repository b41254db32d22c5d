package docstore

import (
	"testing"

	"github.com/ridwanullahh/qurandb/internal/models"
)

func TestValidateKinds(t *testing.T) {
	sc := &Schema{
		Types: map[string]Kind{
			"name":    KindString,
			"count":   KindNumber,
			"done":    KindBoolean,
			"meta":    KindObject,
			"tags":    KindArray,
			"when":    KindDate,
			"ref":     KindUUID,
			"unknown": Kind("mystery"),
		},
	}
	ok := Document{
		"name":    "x",
		"count":   3.0,
		"done":    true,
		"meta":    map[string]any{"a": 1.0},
		"tags":    []any{"a"},
		"when":    "2026-01-02T03:04:05Z",
		"ref":     "0d6f2f64-6a2f-4c6e-9b1a-3f2b6f6e9c11",
		"unknown": struct{}{},
	}
	if err := sc.Validate(ok); err != nil {
		t.Fatal(err)
	}
	bad := []Document{
		{"name": 1.0},
		{"count": "three"},
		{"done": "yes"},
		{"meta": []any{}},
		{"tags": "not a list"},
		{"when": "yesterday"},
		{"ref": 7.0},
	}
	for _, d := range bad {
		if err := sc.Validate(d); !models.IsCode(err, models.ErrorCodeValidationFailed) {
			t.Errorf("Validate(%v) = %v, want validation failure", d, err)
		}
	}
}

func TestValidateRequired(t *testing.T) {
	sc := &Schema{Required: []string{"email"}}
	if err := sc.Validate(Document{"email": "a@b.c"}); err != nil {
		t.Fatal(err)
	}
	for _, d := range []Document{{}, {"email": nil}} {
		if err := sc.Validate(d); !models.IsCode(err, models.ErrorCodeMissingField) {
			t.Errorf("Validate(%v) = %v, want missing field", d, err)
		}
	}
}

func TestDateAcceptsCommonLayouts(t *testing.T) {
	sc := &Schema{Types: map[string]Kind{"when": KindDate}}
	for _, v := range []string{
		"2026-01-02T03:04:05Z",
		"2026-01-02T03:04:05.123Z",
		"2026-01-02 03:04:05",
		"2026-01-02",
	} {
		if err := sc.Validate(Document{"when": v}); err != nil {
			t.Errorf("Validate(%q) = %v", v, err)
		}
	}
}

func TestApplyDefaultsDoesNotMutate(t *testing.T) {
	sc := &Schema{Defaults: map[string]any{"roles": []any{"user"}, "verified": false}}
	in := Document{"email": "a@b.c"}
	out := sc.applyDefaults(in)
	if _, ok := in["roles"]; ok {
		t.Fatal("input mutated")
	}
	roles, ok := out["roles"].([]any)
	if !ok || len(roles) != 1 {
		t.Fatalf("roles = %v", out["roles"])
	}
	roles[0] = "admin"
	if sc.Defaults["roles"].([]any)[0] != "user" {
		t.Fatal("default value aliased into output")
	}
}

func TestNextID(t *testing.T) {
	if got := nextID(nil, 0); got != "1" {
		t.Fatalf("nextID(empty) = %q", got)
	}
	docs := []Document{{"id": "3"}, {"id": "theme"}, {"id": "10"}}
	if got := nextID(docs, 0); got != "11" {
		t.Fatalf("nextID = %q, want \"11\"", got)
	}
	if got := nextID(docs, 2); got != "13" {
		t.Fatalf("nextID offset = %q, want \"13\"", got)
	}
}

func TestDocumentClone(t *testing.T) {
	d := Document{"nested": map[string]any{"list": []any{1.0}}}
	c := d.Clone()
	c["nested"].(map[string]any)["list"].([]any)[0] = 2.0
	if d["nested"].(map[string]any)["list"].([]any)[0] != 1.0 {
		t.Fatal("clone shares nested state")
	}
}

func TestDocumentMatches(t *testing.T) {
	d := Document{"id": "4", "uid": "abc"}
	for _, key := range []string{"4", "abc"} {
		if !d.Matches(key) {
			t.Errorf("Matches(%q) = false", key)
		}
	}
	if d.Matches("5") {
		t.Error("Matches(\"5\") = true")
	}
}
