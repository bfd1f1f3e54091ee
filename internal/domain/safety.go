package domain

// Safety issue codes emitted by the two escalation paths.
const (
	IssueMissingProvenance = "missing_provenance_high_confidence"
	IssueLowIntegrityGate  = "low_integrity_gate"
)

// ConfidenceEscalationThreshold is the confidence at which provenance-free
// messages are auto-escalated for review.
const ConfidenceEscalationThreshold = 0.9

// EscalateUnprovenConfidence applies the pre-validation safety policy: a
// confidence at or above the threshold with no provenance must carry
// safety.level=review. The input safety is never mutated; escalation
// returns a fresh value. This runs once during message construction only;
// externally received messages that trip the same condition are reported as
// semantic violations instead of being silently fixed.
func EscalateUnprovenConfidence(confidence float64, provenance []ProvenanceEntry, current Safety) Safety {
	if confidence < ConfidenceEscalationThreshold || len(provenance) > 0 || current.Level == LevelReview {
		return current
	}
	next := current.Clone()
	next.Level = LevelReview
	next.Issues = append(next.Issues, SafetyIssue{
		Code:   IssueMissingProvenance,
		Detail: "confidence >= 0.9 without provenance",
	})
	return next
}

// EscalateLowIntegrityGate applies the post-enrichment policy: a failed
// integrity gate on an otherwise safe message demands review. Levels other
// than safe (review, block) are left untouched; block stays terminal.
func EscalateLowIntegrityGate(current Safety) Safety {
	if current.Level != LevelSafe {
		return current
	}
	next := current.Clone()
	next.Level = LevelReview
	next.Issues = append(next.Issues, SafetyIssue{Code: IssueLowIntegrityGate})
	return next
}
