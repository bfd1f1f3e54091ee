package domain

import (
	"strings"
	"testing"
)

func baseMessage(msgType MessageType) *Message {
	return &Message{
		ID:          "MSG001",
		Protocol:    Protocol,
		Type:        msgType,
		Timestamp:   "2025-01-04T10:00:00Z",
		Sender:      "TestAgent",
		Content:     "content",
		Confidence:  0.5,
		Provenance:  []ProvenanceEntry{},
		Constraints: []string{},
		Safety:      DefaultSafety(),
		Keywords:    []string{},
	}
}

func TestSemanticViolations_ValidClaim(t *testing.T) {
	if got := SemanticViolations(baseMessage(TypeClaim)); len(got) != 0 {
		t.Errorf("violations = %v, want none", got)
	}
}

func TestSemanticViolations_UppercaseType(t *testing.T) {
	msg := baseMessage("Claim")
	got := SemanticViolations(msg)
	if len(got) == 0 || !strings.Contains(got[0], "lowercase") {
		t.Errorf("violations = %v, want lowercase violation", got)
	}
}

func TestSemanticViolations_EvidenceReportsEveryViolation(t *testing.T) {
	msg := baseMessage(TypeEvidence)
	got := SemanticViolations(msg)
	if len(got) != 2 {
		t.Fatalf("violations = %v, want 2", got)
	}
	joined := strings.Join(got, "; ")
	if !strings.Contains(joined, "refers_to") {
		t.Errorf("missing refers_to violation in %v", got)
	}
	if !strings.Contains(joined, "provenance") {
		t.Errorf("missing provenance violation in %v", got)
	}
}

func TestSemanticViolations_EvidenceSatisfied(t *testing.T) {
	msg := baseMessage(TypeEvidence)
	msg.RefersTo = RefersTo{"MSG000"}
	msg.Provenance = ProvenanceFromStrings("source")
	if got := SemanticViolations(msg); len(got) != 0 {
		t.Errorf("violations = %v, want none", got)
	}
}

func TestSemanticViolations_ResponseAndCorrectionRequireRefersTo(t *testing.T) {
	for _, msgType := range []MessageType{TypeResponse, TypeCorrection} {
		t.Run(string(msgType), func(t *testing.T) {
			msg := baseMessage(msgType)
			got := SemanticViolations(msg)
			if len(got) != 1 || !strings.Contains(got[0], "refers_to") {
				t.Errorf("violations = %v, want single refers_to violation", got)
			}

			msg.RefersTo = RefersTo{"MSG000"}
			if got := SemanticViolations(msg); len(got) != 0 {
				t.Errorf("violations = %v, want none after fix", got)
			}
		})
	}
}

func TestSemanticViolations_EarnedConfidence(t *testing.T) {
	msg := baseMessage(TypeClaim)
	msg.Confidence = 0.9
	got := SemanticViolations(msg)
	if len(got) != 1 || !strings.Contains(got[0], "confidence >= 0.9") {
		t.Errorf("violations = %v, want earned-confidence violation", got)
	}
}

func TestSemanticViolations_EarnedConfidence_SatisfiedByProvenance(t *testing.T) {
	msg := baseMessage(TypeClaim)
	msg.Confidence = 0.95
	msg.Provenance = ProvenanceFromStrings("source1", "source2")
	if got := SemanticViolations(msg); len(got) != 0 {
		t.Errorf("violations = %v, want none", got)
	}
}

func TestSemanticViolations_EarnedConfidence_SatisfiedByReviewFlag(t *testing.T) {
	msg := baseMessage(TypeClaim)
	msg.Confidence = 0.95
	msg.Safety = Safety{Level: LevelReview, Issues: []SafetyIssue{}}
	if got := SemanticViolations(msg); len(got) != 0 {
		t.Errorf("violations = %v, want none", got)
	}
}

func TestSemanticViolations_NeverMutates(t *testing.T) {
	msg := baseMessage(TypeClaim)
	msg.Confidence = 0.95
	_ = SemanticViolations(msg)
	if msg.Safety.Level != LevelSafe {
		t.Errorf("safety level mutated to %s", msg.Safety.Level)
	}
}
