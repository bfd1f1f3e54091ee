package service

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/vigilith/vlp/internal/domain"
	"github.com/vigilith/vlp/internal/schema"
	"github.com/vigilith/vlp/internal/wire"
	"go.uber.org/zap"
)

func newTestValidator(t *testing.T) *ValidatorService {
	t.Helper()
	sv, err := schema.New()
	if err != nil {
		t.Fatalf("schema.New: %v", err)
	}
	return NewValidatorService(sv, zap.NewNop())
}

func floatPtr(v float64) *float64 { return &v }

func TestMakeMessage_Defaults(t *testing.T) {
	v := newTestValidator(t)

	msg, err := v.MakeMessage(domain.TypeClaim, "TestAgent", "water boils at 100C", MessageOptions{
		Confidence: floatPtr(0.7),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.Protocol != domain.Protocol {
		t.Errorf("protocol = %q, want %q", msg.Protocol, domain.Protocol)
	}
	if !strings.HasPrefix(msg.ID, "MSG") {
		t.Errorf("id = %q, want MSG prefix", msg.ID)
	}
	if msg.Timestamp == "" {
		t.Error("timestamp not filled")
	}
	if msg.Confidence != 0.7 {
		t.Errorf("confidence = %v, want 0.7", msg.Confidence)
	}
	if msg.Provenance == nil || msg.Constraints == nil || msg.Keywords == nil {
		t.Error("slice fields must default to empty, not nil")
	}
	if msg.Safety.Level != domain.LevelSafe {
		t.Errorf("safety level = %s, want safe", msg.Safety.Level)
	}
}

func TestMakeMessage_NormalizesTypeAndKeywords(t *testing.T) {
	v := newTestValidator(t)

	msg, err := v.MakeMessage(" CLAIM ", "TestAgent", "content", MessageOptions{
		Confidence: floatPtr(0.5),
		Keywords:   []string{"Research", "research", "  Physics  "},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Type != domain.TypeClaim {
		t.Errorf("type = %q, want claim", msg.Type)
	}
	want := []string{"research", "physics"}
	if !reflect.DeepEqual(msg.Keywords, want) {
		t.Errorf("keywords = %v, want %v", msg.Keywords, want)
	}
}

func TestMakeMessage_EscalatesUnprovenConfidence(t *testing.T) {
	v := newTestValidator(t)

	msg, err := v.MakeMessage(domain.TypeClaim, "TestAgent", "bold claim", MessageOptions{
		Confidence: floatPtr(0.95),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Safety.Level != domain.LevelReview {
		t.Errorf("safety level = %s, want review", msg.Safety.Level)
	}
	count := 0
	for _, i := range msg.Safety.Issues {
		if i.Code == domain.IssueMissingProvenance {
			count++
		}
	}
	if count != 1 {
		t.Errorf("missing_provenance issue appended %d times, want exactly once", count)
	}
}

func TestMakeMessage_ProvenanceKeepsSafe(t *testing.T) {
	v := newTestValidator(t)

	msg, err := v.MakeMessage(domain.TypeClaim, "TestAgent", "sourced claim", MessageOptions{
		Confidence: floatPtr(0.95),
		Provenance: domain.ProvenanceFromStrings("experiment log"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Safety.Level != domain.LevelSafe {
		t.Errorf("safety level = %s, want safe", msg.Safety.Level)
	}
	if len(msg.Safety.Issues) != 0 {
		t.Errorf("issues = %v, want none", msg.Safety.Issues)
	}
}

func TestMakeMessage_DoesNotMutateCallerSafety(t *testing.T) {
	v := newTestValidator(t)

	supplied := &domain.Safety{Level: domain.LevelSafe, Issues: []domain.SafetyIssue{}}
	_, err := v.MakeMessage(domain.TypeClaim, "TestAgent", "bold claim", MessageOptions{
		Confidence: floatPtr(0.95),
		Safety:     supplied,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if supplied.Level != domain.LevelSafe || len(supplied.Issues) != 0 {
		t.Errorf("caller safety mutated: %+v", supplied)
	}
}

func TestMakeMessage_EvidenceViolations(t *testing.T) {
	v := newTestValidator(t)

	_, err := v.MakeMessage(domain.TypeEvidence, "TestAgent", "naked evidence", MessageOptions{
		Confidence: floatPtr(0.5),
	})
	if err == nil {
		t.Fatal("expected validation error")
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	if len(verr.Violations) != 2 {
		t.Fatalf("violations = %v, want 2", verr.Strings())
	}
	for _, viol := range verr.Violations {
		if viol.Kind != ViolationSemantic {
			t.Errorf("kind = %s, want semantic", viol.Kind)
		}
	}
}

func TestMakeMessage_UnknownTypeIsSchemaViolation(t *testing.T) {
	v := newTestValidator(t)

	_, err := v.MakeMessage("rumor", "TestAgent", "content", MessageOptions{
		Confidence: floatPtr(0.5),
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	found := false
	for _, viol := range verr.Violations {
		if viol.Kind == ViolationSchema {
			found = true
		}
	}
	if !found {
		t.Errorf("violations = %+v, want a schema violation", verr.Violations)
	}
}

func TestValidate_AggregatesSchemaAndSemantic(t *testing.T) {
	v := newTestValidator(t)

	msg := &domain.Message{
		ID:          "MSG001",
		Protocol:    domain.Protocol,
		Type:        domain.TypeResponse, // refers_to missing: semantic
		Timestamp:   "2025-01-04T10:00:00Z",
		Sender:      "", // empty sender: schema
		Content:     "content",
		Confidence:  0.5,
		Provenance:  []domain.ProvenanceEntry{},
		Constraints: []string{},
		Safety:      domain.DefaultSafety(),
		Keywords:    []string{},
	}

	err := v.Validate(msg)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}

	kinds := map[ViolationKind]bool{}
	for _, viol := range verr.Violations {
		kinds[viol.Kind] = true
	}
	if !kinds[ViolationSchema] || !kinds[ViolationSemantic] {
		t.Errorf("violations = %+v, want both schema and semantic kinds", verr.Violations)
	}
}

func TestValidate_NeverEscalates(t *testing.T) {
	v := newTestValidator(t)

	msg := &domain.Message{
		ID:          "MSG001",
		Protocol:    domain.Protocol,
		Type:        domain.TypeClaim,
		Timestamp:   "2025-01-04T10:00:00Z",
		Sender:      "TestAgent",
		Content:     "bold claim",
		Confidence:  0.95,
		Provenance:  []domain.ProvenanceEntry{},
		Constraints: []string{},
		Safety:      domain.DefaultSafety(),
		Keywords:    []string{},
	}

	err := v.Validate(msg)
	if err == nil {
		t.Fatal("expected earned-confidence violation")
	}
	if msg.Safety.Level != domain.LevelSafe {
		t.Errorf("Validate mutated safety to %s", msg.Safety.Level)
	}
}

func TestValidateRaw_MissingConfidence(t *testing.T) {
	v := newTestValidator(t)

	// The field is absent, not zero; decoding into the struct first would
	// hide that.
	raw := []byte(`{"id":"MSG001","protocol":"VLP/1.1","type":"claim","timestamp":"2025-01-04T10:00:00Z","sender":"A","content":"x"}`)

	_, err := v.ValidateRaw(raw)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	found := false
	for _, viol := range verr.Violations {
		if viol.Kind == ViolationSchema && strings.Contains(viol.Message, "confidence") {
			found = true
		}
	}
	if !found {
		t.Errorf("violations = %+v, want missing-confidence schema violation", verr.Violations)
	}
}

func TestValidateRaw_Valid(t *testing.T) {
	v := newTestValidator(t)

	// safety may be omitted entirely on the wire; it defaults to safe.
	raw := []byte(`{"id":"MSG001","protocol":"VLP/1.1","type":"claim","timestamp":"2025-01-04T10:00:00Z","sender":"A","content":"x","confidence":0.5}`)

	msg, err := v.ValidateRaw(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Safety.Level != domain.LevelSafe {
		t.Errorf("safety level = %q, want safe", msg.Safety.Level)
	}
	if msg.Confidence != 0.5 {
		t.Errorf("confidence = %v, want 0.5", msg.Confidence)
	}
}

func TestValidateRaw_SemanticViolations(t *testing.T) {
	v := newTestValidator(t)

	raw := []byte(`{"id":"MSG001","protocol":"VLP/1.1","type":"evidence","timestamp":"2025-01-04T10:00:00Z","sender":"A","content":"x","confidence":0.5}`)

	msg, err := v.ValidateRaw(raw)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if msg == nil {
		t.Fatal("decoded message must be returned alongside the violations")
	}
	if len(verr.Violations) != 2 {
		t.Errorf("violations = %v, want refers_to and provenance", verr.Strings())
	}
}

func TestValidateRaw_NotJSON(t *testing.T) {
	v := newTestValidator(t)

	_, err := v.ValidateRaw([]byte(`{not json}`))
	if err == nil {
		t.Fatal("expected error")
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		t.Errorf("malformed bytes must not be a ValidationError, got %v", err)
	}
}

func TestValidateRaw_SampleStream(t *testing.T) {
	v := newTestValidator(t)

	raw, err := os.ReadFile(filepath.Join("..", "..", "examples", "messages.ndjson"))
	if err != nil {
		t.Fatalf("read sample stream: %v", err)
	}

	lines, err := wire.Lines(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("split sample stream: %v", err)
	}
	if len(lines) == 0 {
		t.Fatal("sample stream is empty")
	}
	for _, ln := range lines {
		if _, err := v.ValidateRaw(ln.Raw); err != nil {
			t.Errorf("line %d invalid: %v", ln.Num, err)
		}
	}
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Violations: []Violation{
		{Kind: ViolationSchema, Message: "a"},
		{Kind: ViolationSemantic, Message: "b"},
	}}
	want := "message validation failed: a; b"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
