package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Protocol is the wire protocol version stamped on every message.
const Protocol = "VLP/1.1"

type MessageType string

const (
	TypeClaim          MessageType = "claim"
	TypeEvidence       MessageType = "evidence"
	TypeQuery          MessageType = "query"
	TypeResponse       MessageType = "response"
	TypeCorrection     MessageType = "correction"
	TypeNotice         MessageType = "notice"
	TypeSessionContext MessageType = "session_context"
)

func ValidMessageType(t string) bool {
	switch MessageType(t) {
	case TypeClaim, TypeEvidence, TypeQuery, TypeResponse, TypeCorrection, TypeNotice, TypeSessionContext:
		return true
	}
	return false
}

type SafetyLevel string

const (
	LevelSafe   SafetyLevel = "safe"
	LevelReview SafetyLevel = "review"
	LevelBlock  SafetyLevel = "block"
)

func ValidSafetyLevel(l string) bool {
	switch SafetyLevel(l) {
	case LevelSafe, LevelReview, LevelBlock:
		return true
	}
	return false
}

type SafetyIssue struct {
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
}

// Safety is a value type. Escalation steps return a new value instead of
// mutating a shared one; callers must treat it as copy-on-write.
type Safety struct {
	Level         SafetyLevel   `json:"level"`
	Issues        []SafetyIssue `json:"issues"`
	RequiresHuman bool          `json:"requires_human,omitempty"`
}

func DefaultSafety() Safety {
	return Safety{Level: LevelSafe, Issues: []SafetyIssue{}}
}

// Clone returns a deep copy so the caller's issues slice is never aliased.
func (s Safety) Clone() Safety {
	out := s
	out.Issues = make([]SafetyIssue, len(s.Issues))
	copy(out.Issues, s.Issues)
	return out
}

// HasIssue reports whether an issue with the given code is present.
func (s Safety) HasIssue(code string) bool {
	for _, i := range s.Issues {
		if i.Code == code {
			return true
		}
	}
	return false
}

// ProvenanceEntry is one evidence source: either a bare label or a
// structured reference. A bare label marshals as a plain JSON string.
type ProvenanceEntry struct {
	Label     string
	Ref       string
	Kind      string
	Hash      string
	Excerpt   string
	FetchedAt string
}

type provenanceRef struct {
	Ref       string `json:"ref"`
	Kind      string `json:"kind,omitempty"`
	Hash      string `json:"hash,omitempty"`
	Excerpt   string `json:"excerpt,omitempty"`
	FetchedAt string `json:"fetched_at,omitempty"`
}

func (p ProvenanceEntry) MarshalJSON() ([]byte, error) {
	if p.Label != "" {
		return json.Marshal(p.Label)
	}
	return json.Marshal(provenanceRef{
		Ref:       p.Ref,
		Kind:      p.Kind,
		Hash:      p.Hash,
		Excerpt:   p.Excerpt,
		FetchedAt: p.FetchedAt,
	})
}

func (p *ProvenanceEntry) UnmarshalJSON(b []byte) error {
	var label string
	if err := json.Unmarshal(b, &label); err == nil {
		*p = ProvenanceEntry{Label: label}
		return nil
	}
	var ref provenanceRef
	if err := json.Unmarshal(b, &ref); err != nil {
		return fmt.Errorf("provenance entry must be a string or a reference object: %w", err)
	}
	*p = ProvenanceEntry{
		Ref:       ref.Ref,
		Kind:      ref.Kind,
		Hash:      ref.Hash,
		Excerpt:   ref.Excerpt,
		FetchedAt: ref.FetchedAt,
	}
	return nil
}

// ProvenanceFromStrings builds bare-label provenance entries.
func ProvenanceFromStrings(labels ...string) []ProvenanceEntry {
	out := make([]ProvenanceEntry, 0, len(labels))
	for _, l := range labels {
		out = append(out, ProvenanceEntry{Label: l})
	}
	return out
}

// RefersTo holds zero or more referenced message IDs. It accepts null, a
// single string, or an array of strings on the wire; a single reference
// marshals back as a plain string.
type RefersTo []string

func (r RefersTo) MarshalJSON() ([]byte, error) {
	switch len(r) {
	case 0:
		return []byte("null"), nil
	case 1:
		return json.Marshal(r[0])
	default:
		return json.Marshal([]string(r))
	}
}

func (r *RefersTo) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = nil
		return nil
	}
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*r = RefersTo{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("refers_to must be null, a string, or an array of strings: %w", err)
	}
	*r = RefersTo(many)
	return nil
}

type Gate string

const (
	GatePass   Gate = "pass"
	GateReview Gate = "review"
	GateFail   Gate = "fail"
)

// ContextLayer is one of the six dimensions whose verification status
// contributes to context depth.
type ContextLayer string

const (
	LayerIntent      ContextLayer = "intent"
	LayerConstraints ContextLayer = "constraints"
	LayerState       ContextLayer = "state"
	LayerMemory      ContextLayer = "memory"
	LayerEvidence    ContextLayer = "evidence"
	LayerCapability  ContextLayer = "capability"
)

// ContextLayers lists all six layers in their canonical order.
func ContextLayers() []ContextLayer {
	return []ContextLayer{
		LayerIntent, LayerConstraints, LayerState,
		LayerMemory, LayerEvidence, LayerCapability,
	}
}

// ContextDepth aggregates a verification vector into an integer 0-6. The
// core does not resolve layers itself; verification comes from external
// resolvers.
func ContextDepth(verified map[ContextLayer]bool) int {
	depth := 0
	for _, layer := range ContextLayers() {
		if verified[layer] {
			depth++
		}
	}
	return depth
}

// Message is the central VLP entity. It is immutable once constructed and
// validated, except for the context_* and gate fields, which the integrity
// scorer attaches exactly once.
type Message struct {
	ID          string            `json:"id"`
	Protocol    string            `json:"protocol"`
	Type        MessageType       `json:"type"`
	Timestamp   string            `json:"timestamp"`
	SessionID   string            `json:"session_id,omitempty"`
	Seq         *int              `json:"seq,omitempty"`
	Sender      string            `json:"sender"`
	Receiver    string            `json:"receiver,omitempty"`
	Topic       string            `json:"topic,omitempty"`
	Content     any               `json:"content"`
	Confidence  float64           `json:"confidence"`
	Provenance  []ProvenanceEntry `json:"provenance"`
	Constraints []string          `json:"constraints"`
	Safety      Safety            `json:"safety"`
	RefersTo    RefersTo          `json:"refers_to"`
	Keywords    []string          `json:"keywords"`
	Payload     map[string]any    `json:"payload,omitempty"`

	// Attached by the integrity scorer, never set by the author.
	ContextIntegrity *float64 `json:"context_integrity,omitempty"`
	ContextDepth     *int     `json:"context_depth,omitempty"`
	ContextDebt      *float64 `json:"context_debt,omitempty"`
	Gate             Gate     `json:"gate,omitempty"`
}

// Enriched reports whether the integrity scorer has already run.
func (m *Message) Enriched() bool {
	return m.ContextIntegrity != nil
}

// NormalizeKeywords lowercases, trims, drops empties, and de-duplicates
// keywords while preserving first-seen order.
func NormalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, k := range in {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
