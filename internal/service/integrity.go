package service

import (
	"errors"

	"github.com/vigilith/vlp/internal/domain"
	"go.uber.org/zap"
)

// Integrity formula weights and gate thresholds.
const (
	IntegrityBase     = 0.5
	ProvenanceWeight  = 0.12
	ConstraintWeight  = 0.09
	UnknownPenalty    = 0.10
	GatePassThreshold = 0.75
	GateReviewFloor   = 0.5
)

var ErrAlreadyEnriched = errors.New("message already enriched")

// IntegrityReport is the result of scoring one message.
type IntegrityReport struct {
	Integrity float64     `json:"integrity"`
	Debt      float64     `json:"debt"`
	Gate      domain.Gate `json:"gate"`
}

// Score computes the bounded integrity score and gate decision from
// provenance count, total constraint count, and unknown constraint count.
// It is a pure function so the formula can be tested in isolation.
func Score(provenanceCount, constraintCount, unknownCount int) IntegrityReport {
	integrity := IntegrityBase +
		ProvenanceWeight*float64(provenanceCount) +
		ConstraintWeight*float64(constraintCount) -
		UnknownPenalty*float64(unknownCount)
	if integrity < 0 {
		integrity = 0
	}
	if integrity > 1 {
		integrity = 1
	}
	return IntegrityReport{
		Integrity: integrity,
		Debt:      1.0 - integrity,
		Gate:      GateFor(integrity),
	}
}

// GateFor maps an integrity score to the three-way disposition.
func GateFor(integrity float64) domain.Gate {
	switch {
	case integrity >= GatePassThreshold:
		return domain.GatePass
	case integrity >= GateReviewFloor:
		return domain.GateReview
	default:
		return domain.GateFail
	}
}

// IntegrityService scores context integrity against a registry of known
// constraints supplied by the caller.
type IntegrityService struct {
	known  map[string]struct{}
	logger *zap.Logger
}

func NewIntegrityService(knownConstraints []string, logger *zap.Logger) *IntegrityService {
	known := make(map[string]struct{}, len(knownConstraints))
	for _, c := range knownConstraints {
		known[c] = struct{}{}
	}
	return &IntegrityService{known: known, logger: logger}
}

// UnknownConstraints counts constraints absent from the known registry.
func (s *IntegrityService) UnknownConstraints(constraints []string) int {
	unknown := 0
	for _, c := range constraints {
		if _, ok := s.known[c]; !ok {
			unknown++
		}
	}
	return unknown
}

// Enrich attaches the validator-computed fields to a message exactly once.
// The verified vector comes from external per-layer resolvers. A failed
// gate on a safe message escalates safety to review with issue
// low_integrity_gate; review and block levels are left untouched.
func (s *IntegrityService) Enrich(msg *domain.Message, verified map[domain.ContextLayer]bool) (IntegrityReport, error) {
	if msg.Enriched() {
		return IntegrityReport{}, ErrAlreadyEnriched
	}

	unknown := s.UnknownConstraints(msg.Constraints)
	report := Score(len(msg.Provenance), len(msg.Constraints), unknown)
	depth := domain.ContextDepth(verified)

	integrity := report.Integrity
	debt := report.Debt
	msg.ContextIntegrity = &integrity
	msg.ContextDepth = &depth
	msg.ContextDebt = &debt
	msg.Gate = report.Gate

	if report.Gate == domain.GateFail {
		msg.Safety = domain.EscalateLowIntegrityGate(msg.Safety)
	}

	s.logger.Debug("message enriched",
		zap.String("message_id", msg.ID),
		zap.Float64("integrity", report.Integrity),
		zap.Int("depth", depth),
		zap.String("gate", string(report.Gate)))

	return report, nil
}
