package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vigilith/vlp/internal/domain"
	"github.com/vigilith/vlp/internal/ident"
	"github.com/vigilith/vlp/internal/schema"
	"go.uber.org/zap"
)

type ViolationKind string

const (
	ViolationSchema   ViolationKind = "schema"
	ViolationSemantic ViolationKind = "semantic"
)

type Violation struct {
	Kind    ViolationKind `json:"kind"`
	Message string        `json:"message"`
}

// ValidationError aggregates every schema and semantic violation found in a
// candidate message. Validation never stops at the first failure.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	return "message validation failed: " + strings.Join(e.Strings(), "; ")
}

// Strings returns the violation messages in evaluation order.
func (e *ValidationError) Strings() []string {
	out := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		out = append(out, v.Message)
	}
	return out
}

// ValidatorService builds and validates VLP messages. It is the single
// entry point for producing new messages.
type ValidatorService struct {
	schema *schema.Validator
	logger *zap.Logger
}

func NewValidatorService(sv *schema.Validator, logger *zap.Logger) *ValidatorService {
	return &ValidatorService{schema: sv, logger: logger}
}

// MessageOptions carries the optional fields of a message under
// construction. Zero values mean "use the default".
type MessageOptions struct {
	ID          string
	Timestamp   string
	SessionID   string
	Seq         *int
	Receiver    string
	Topic       string
	Confidence  *float64 // defaults to 1.0
	Provenance  []domain.ProvenanceEntry
	Constraints []string
	Safety      *domain.Safety
	RefersTo    domain.RefersTo
	Keywords    []string
	Payload     map[string]any
}

// MakeMessage normalizes the inputs, applies the safety escalation policy,
// assembles a full message with defaults, and validates it. It either
// returns a fully valid message or an error listing every violated rule.
func (s *ValidatorService) MakeMessage(msgType domain.MessageType, sender string, content any, opts MessageOptions) (*domain.Message, error) {
	t := domain.MessageType(strings.ToLower(strings.TrimSpace(string(msgType))))

	confidence := 1.0
	if opts.Confidence != nil {
		confidence = *opts.Confidence
	}

	provenance := opts.Provenance
	if provenance == nil {
		provenance = []domain.ProvenanceEntry{}
	}
	constraints := opts.Constraints
	if constraints == nil {
		constraints = []string{}
	}
	keywords := domain.NormalizeKeywords(opts.Keywords)

	safety := domain.DefaultSafety()
	if opts.Safety != nil {
		safety = opts.Safety.Clone()
		if safety.Level == "" {
			safety.Level = domain.LevelSafe
		}
		if safety.Issues == nil {
			safety.Issues = []domain.SafetyIssue{}
		}
	}
	// Pre-empt the earned-confidence rule so freshly built messages
	// self-heal; received messages go through Validate and are reported.
	safety = domain.EscalateUnprovenConfidence(confidence, provenance, safety)

	id := opts.ID
	if id == "" {
		id = ident.NewID(ident.DefaultPrefix)
	}
	timestamp := opts.Timestamp
	if timestamp == "" {
		timestamp = ident.NowISO()
	}

	msg := &domain.Message{
		ID:          id,
		Protocol:    domain.Protocol,
		Type:        t,
		Timestamp:   timestamp,
		SessionID:   opts.SessionID,
		Seq:         opts.Seq,
		Sender:      sender,
		Receiver:    opts.Receiver,
		Topic:       opts.Topic,
		Content:     content,
		Confidence:  confidence,
		Provenance:  provenance,
		Constraints: constraints,
		Safety:      safety,
		RefersTo:    opts.RefersTo,
		Keywords:    keywords,
		Payload:     opts.Payload,
	}

	if err := s.Validate(msg); err != nil {
		s.logger.Debug("message construction rejected",
			zap.String("type", string(t)),
			zap.String("sender", sender),
			zap.Error(err))
		return nil, err
	}

	return msg, nil
}

// Validate runs the schema conformance check followed by the truth-serum
// rules, aggregating every violation. It never mutates or escalates the
// message.
func (s *ValidatorService) Validate(msg *domain.Message) error {
	candidate, err := decodeForSchema(msg)
	if err != nil {
		return fmt.Errorf("encode message for schema check: %w", err)
	}

	var violations []Violation
	if ok, schemaErrs := s.schema.Validate(candidate); !ok {
		for _, e := range schemaErrs {
			violations = append(violations, Violation{Kind: ViolationSchema, Message: e})
		}
	}
	for _, e := range domain.SemanticViolations(msg) {
		violations = append(violations, Violation{Kind: ViolationSemantic, Message: e})
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// ValidateRaw checks a wire-encoded message. The schema runs against the
// raw JSON candidate, not the re-marshaled struct, so required fields that
// were omitted on the wire are reported missing instead of being filled in
// with zero values. The decoded message is returned whenever the bytes form
// a JSON value, even if validation failed; a non-ValidationError means the
// bytes were not JSON at all.
func (s *ValidatorService) ValidateRaw(raw []byte) (*domain.Message, error) {
	var candidate any
	if err := json.Unmarshal(raw, &candidate); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	var violations []Violation
	if ok, schemaErrs := s.schema.Validate(candidate); !ok {
		for _, e := range schemaErrs {
			violations = append(violations, Violation{Kind: ViolationSchema, Message: e})
		}
	}

	var msg domain.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		if len(violations) == 0 {
			violations = append(violations, Violation{Kind: ViolationSchema, Message: err.Error()})
		}
		return nil, &ValidationError{Violations: violations}
	}
	if msg.Safety.Level == "" {
		msg.Safety = domain.DefaultSafety()
	}
	if msg.Safety.Issues == nil {
		msg.Safety.Issues = []domain.SafetyIssue{}
	}

	for _, e := range domain.SemanticViolations(&msg) {
		violations = append(violations, Violation{Kind: ViolationSemantic, Message: e})
	}

	if len(violations) > 0 {
		return &msg, &ValidationError{Violations: violations}
	}
	return &msg, nil
}

// decodeForSchema round-trips the message through JSON so the schema sees
// the exact wire shape, custom marshalers included.
func decodeForSchema(msg *domain.Message) (any, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	var candidate any
	if err := json.Unmarshal(raw, &candidate); err != nil {
		return nil, err
	}
	return candidate, nil
}
