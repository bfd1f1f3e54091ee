package schema

import (
	"encoding/json"
	"strings"
	"testing"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		t.Fatalf("bad test fixture: %v", err)
	}
	return v
}

const validRaw = `{
	"id": "MSG001",
	"protocol": "VLP/1.1",
	"type": "claim",
	"timestamp": "2025-01-04T10:00:00Z",
	"sender": "TestAgent",
	"content": "hello",
	"confidence": 0.8,
	"provenance": [],
	"constraints": [],
	"safety": {"level": "safe", "issues": []},
	"refers_to": null,
	"keywords": []
}`

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New()
	if err != nil {
		t.Fatalf("embedded schema failed to compile: %v", err)
	}
	return v
}

func TestValidate_ValidMessage(t *testing.T) {
	v := newValidator(t)
	ok, errs := v.Validate(decode(t, validRaw))
	if !ok {
		t.Errorf("expected valid, got errors: %v", errs)
	}
}

func mutate(t *testing.T, mutator func(m map[string]any)) any {
	t.Helper()
	m := decode(t, validRaw).(map[string]any)
	mutator(m)
	return m
}

func TestValidate_Failures(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name    string
		mutator func(m map[string]any)
		wantIn  string
	}{
		{"missing confidence", func(m map[string]any) { delete(m, "confidence") }, "confidence"},
		{"confidence above range", func(m map[string]any) { m["confidence"] = 1.5 }, "confidence"},
		{"confidence below range", func(m map[string]any) { m["confidence"] = -0.1 }, "confidence"},
		{"uppercase type", func(m map[string]any) { m["type"] = "CLAIM" }, "type"},
		{"unknown type", func(m map[string]any) { m["type"] = "rumor" }, "type"},
		{"empty sender", func(m map[string]any) { m["sender"] = "" }, "sender"},
		{"short id", func(m map[string]any) { m["id"] = "ab" }, "id"},
		{"wrong protocol", func(m map[string]any) { m["protocol"] = "VLP/2.0" }, "protocol"},
		{"bad timestamp", func(m map[string]any) { m["timestamp"] = "yesterday" }, "timestamp"},
		{"numeric refers_to", func(m map[string]any) { m["refers_to"] = 42 }, "refers_to"},
		{"bad safety level", func(m map[string]any) { m["safety"] = map[string]any{"level": "fine"} }, "safety"},
		{"negative seq", func(m map[string]any) { m["seq"] = -1 }, "seq"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, errs := v.Validate(mutate(t, tt.mutator))
			if ok {
				t.Fatal("expected invalid")
			}
			if len(errs) == 0 {
				t.Fatal("expected error strings")
			}
			joined := strings.Join(errs, "; ")
			if !strings.Contains(joined, tt.wantIn) {
				t.Errorf("errors %v, want mention of %q", errs, tt.wantIn)
			}
		})
	}
}

func TestValidate_RefersToForms(t *testing.T) {
	v := newValidator(t)

	for name, value := range map[string]any{
		"string": "MSG000",
		"array":  []any{"MSG000", "MSG001"},
		"null":   nil,
	} {
		t.Run(name, func(t *testing.T) {
			ok, errs := v.Validate(mutate(t, func(m map[string]any) { m["refers_to"] = value }))
			if !ok {
				t.Errorf("expected valid, got %v", errs)
			}
		})
	}
}

func TestValidate_ProvenanceForms(t *testing.T) {
	v := newValidator(t)

	ok, errs := v.Validate(mutate(t, func(m map[string]any) {
		m["provenance"] = []any{
			"plain label",
			map[string]any{"ref": "https://example.com", "kind": "url"},
		}
	}))
	if !ok {
		t.Errorf("expected valid, got %v", errs)
	}

	ok, _ = v.Validate(mutate(t, func(m map[string]any) {
		m["provenance"] = []any{map[string]any{"kind": "url"}} // ref missing
	}))
	if ok {
		t.Error("expected invalid for provenance ref object without ref")
	}
}

func TestValidate_CollectsMultipleErrors(t *testing.T) {
	v := newValidator(t)
	ok, errs := v.Validate(mutate(t, func(m map[string]any) {
		delete(m, "confidence")
		m["type"] = "rumor"
		m["sender"] = ""
	}))
	if ok {
		t.Fatal("expected invalid")
	}
	if len(errs) < 3 {
		t.Errorf("errors = %v, want at least 3", errs)
	}
}

func TestFromBytes_MalformedSchema(t *testing.T) {
	if _, err := FromBytes([]byte(`{`)); err == nil {
		t.Error("expected error for truncated schema document")
	}
	if _, err := FromBytes([]byte(`{"type": 12}`)); err == nil {
		t.Error("expected error for invalid schema document")
	}
}
