package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/vigilith/vlp/internal/domain"
	"github.com/vigilith/vlp/internal/service"
)

type MessageHandler struct {
	validator *service.ValidatorService
	integrity *service.IntegrityService
}

func NewMessageHandler(validator *service.ValidatorService, integrity *service.IntegrityService) *MessageHandler {
	return &MessageHandler{validator: validator, integrity: integrity}
}

type makeMessageRequest struct {
	Type        string                   `json:"type"`
	Sender      string                   `json:"sender"`
	Content     any                      `json:"content"`
	ID          string                   `json:"id,omitempty"`
	Timestamp   string                   `json:"timestamp,omitempty"`
	SessionID   string                   `json:"session_id,omitempty"`
	Seq         *int                     `json:"seq,omitempty"`
	Receiver    string                   `json:"receiver,omitempty"`
	Topic       string                   `json:"topic,omitempty"`
	Confidence  *float64                 `json:"confidence,omitempty"`
	Provenance  []domain.ProvenanceEntry `json:"provenance,omitempty"`
	Constraints []string                 `json:"constraints,omitempty"`
	Safety      *domain.Safety           `json:"safety,omitempty"`
	RefersTo    domain.RefersTo          `json:"refers_to,omitempty"`
	Keywords    []string                 `json:"keywords,omitempty"`
	Payload     map[string]any           `json:"payload,omitempty"`
}

type validationFailureResponse struct {
	Error      string              `json:"error"`
	Violations []service.Violation `json:"violations"`
}

// Create constructs and validates a new message. On failure it returns
// every violation, not just the first.
func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req makeMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.validator.MakeMessage(domain.MessageType(req.Type), req.Sender, req.Content, service.MessageOptions{
		ID:          req.ID,
		Timestamp:   req.Timestamp,
		SessionID:   req.SessionID,
		Seq:         req.Seq,
		Receiver:    req.Receiver,
		Topic:       req.Topic,
		Confidence:  req.Confidence,
		Provenance:  req.Provenance,
		Constraints: req.Constraints,
		Safety:      req.Safety,
		RefersTo:    req.RefersTo,
		Keywords:    req.Keywords,
		Payload:     req.Payload,
	})
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, validationFailureResponse{
				Error:      "message validation failed",
				Violations: verr.Violations,
			})
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to construct message")
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

type validateResponse struct {
	Valid      bool                `json:"valid"`
	Violations []service.Violation `json:"violations,omitempty"`
}

// Validate checks an externally received message. This path never applies
// escalation; it only reports. The raw body goes to the schema untouched so
// that omitted required fields stay omitted.
func (h *MessageHandler) Validate(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := h.validator.ValidateRaw(raw); err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusOK, validateResponse{Valid: false, Violations: verr.Violations})
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	writeJSON(w, http.StatusOK, validateResponse{Valid: true})
}

type scoreRequest struct {
	Message        domain.Message `json:"message"`
	VerifiedLayers []string       `json:"verified_layers,omitempty"`
}

type scoreResponse struct {
	Message *domain.Message         `json:"message"`
	Report  service.IntegrityReport `json:"report"`
}

// Score runs the optional post-validation enrichment pass: integrity,
// depth, debt, and gate are attached exactly once.
func (h *MessageHandler) Score(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	verified := make(map[domain.ContextLayer]bool, len(req.VerifiedLayers))
	for _, l := range req.VerifiedLayers {
		verified[domain.ContextLayer(l)] = true
	}

	report, err := h.integrity.Enrich(&req.Message, verified)
	if err != nil {
		if errors.Is(err, service.ErrAlreadyEnriched) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to score message")
		return
	}

	writeJSON(w, http.StatusOK, scoreResponse{Message: &req.Message, Report: report})
}
