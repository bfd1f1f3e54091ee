package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vigilith/vlp/internal/domain"
	"github.com/vigilith/vlp/internal/service"
)

type SessionHandler struct {
	registry *service.SessionRegistry
}

func NewSessionHandler(registry *service.SessionRegistry) *SessionHandler {
	return &SessionHandler{registry: registry}
}

type startSessionRequest struct {
	AgentName   string `json:"agent_name"`
	AgentNumber int    `json:"agent_number,omitempty"`
}

type sessionResponse struct {
	SessionID   string `json:"session_id"`
	AgentName   string `json:"agent_name"`
	AgentNumber int    `json:"agent_number"`
	StartedAt   string `json:"started_at"`
	Seq         int    `json:"seq"`
}

func toSessionResponse(s *service.Session) sessionResponse {
	return sessionResponse{
		SessionID:   s.ID,
		AgentName:   s.AgentName,
		AgentNumber: s.AgentNumber,
		StartedAt:   s.StartedAt,
		Seq:         s.Seq(),
	}
}

func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AgentName == "" {
		writeError(w, http.StatusBadRequest, "agent_name is required")
		return
	}

	session := h.registry.StartSession(req.AgentName, req.AgentNumber)
	writeJSON(w, http.StatusCreated, toSessionResponse(session))
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := h.registry.GetSession(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, service.ErrSessionNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

type endSessionRequest struct {
	Summary string `json:"summary,omitempty"`
}

// End emits the terminal session_context message and removes the session.
// Ending an already-ended session is a conflict, never a silent no-op.
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	session, ok := h.registry.GetSession(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, service.ErrSessionNotFound.Error())
		return
	}

	var req endSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.registry.EndSession(session, req.Summary)
	if err != nil {
		if errors.Is(err, service.ErrSessionEnded) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to end session")
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

type createClaimRequest struct {
	Content     any      `json:"content"`
	Confidence  *float64 `json:"confidence,omitempty"`
	Provenance  []string `json:"provenance,omitempty"`
	Constraints []string `json:"constraints,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Topic       string   `json:"topic,omitempty"`
	Receiver    string   `json:"receiver,omitempty"`
}

func (h *SessionHandler) CreateClaim(w http.ResponseWriter, r *http.Request) {
	session, ok := h.registry.GetSession(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, service.ErrSessionNotFound.Error())
		return
	}

	var req createClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	opts := service.MessageOptions{
		Confidence:  req.Confidence,
		Constraints: req.Constraints,
		Keywords:    req.Keywords,
		Topic:       req.Topic,
		Receiver:    req.Receiver,
	}
	if len(req.Provenance) > 0 {
		opts.Provenance = domain.ProvenanceFromStrings(req.Provenance...)
	}

	claim, err := h.registry.CreateClaim(session, req.Content, opts)
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, validationFailureResponse{
				Error:      "claim validation failed",
				Violations: verr.Violations,
			})
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create claim")
		return
	}

	writeJSON(w, http.StatusCreated, claim)
}
