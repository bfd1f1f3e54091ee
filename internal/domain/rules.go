package domain

import (
	"fmt"
	"math"
	"strings"
)

// SemanticViolations applies the protocol's truth-serum rules to an already
// schema-valid message and returns every violation, not just the first. An
// empty result means the message is semantically valid. The message is never
// mutated; escalation is a separate construction-time step.
func SemanticViolations(m *Message) []string {
	var out []string

	t := string(m.Type)
	if t != strings.ToLower(t) {
		out = append(out, "type must be lowercase")
	}

	// Schema already requires a numeric confidence; NaN slips past it.
	if math.IsNaN(m.Confidence) {
		out = append(out, "confidence is required")
	}

	if m.Type == TypeEvidence {
		if len(m.RefersTo) == 0 {
			out = append(out, "evidence messages must include refers_to")
		}
		if len(m.Provenance) == 0 {
			out = append(out, "evidence messages must include non-empty provenance")
		}
	}

	if m.Type == TypeResponse || m.Type == TypeCorrection {
		if len(m.RefersTo) == 0 {
			out = append(out, fmt.Sprintf("%s messages must include refers_to", t))
		}
	}

	// High confidence must be earned (provenance) or explicitly flagged.
	if m.Confidence >= ConfidenceEscalationThreshold && len(m.Provenance) == 0 && m.Safety.Level != LevelReview {
		out = append(out, "confidence >= 0.9 requires provenance or safety.level=review")
	}

	return out
}
