package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/vigilith/vlp/internal/domain"
	"github.com/vigilith/vlp/internal/service"
	"github.com/vigilith/vlp/internal/wire"
)

type StreamHandler struct {
	validator *service.ValidatorService
}

func NewStreamHandler(validator *service.ValidatorService) *StreamHandler {
	return &StreamHandler{validator: validator}
}

type decodeStreamResponse struct {
	Count    int                            `json:"count"`
	Messages []domain.Message               `json:"messages"`
	Invalid  map[string][]service.Violation `json:"invalid,omitempty"`
}

// Decode parses an NDJSON request body and validates each message against
// its raw line, so required fields omitted on the wire are reported rather
// than defaulted. A malformed line aborts the whole parse with a
// line-numbered error.
func (h *StreamHandler) Decode(w http.ResponseWriter, r *http.Request) {
	lines, err := wire.Lines(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	messages := make([]domain.Message, 0, len(lines))
	invalid := make(map[string][]service.Violation)
	for _, ln := range lines {
		msg, err := h.validator.ValidateRaw(ln.Raw)
		if err != nil {
			var verr *service.ValidationError
			if !errors.As(err, &verr) {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("line %d: %v", ln.Num, err))
				return
			}
			key := fmt.Sprintf("line %d", ln.Num)
			if msg != nil {
				key = msg.ID
			}
			invalid[key] = verr.Violations
		}
		if msg != nil {
			messages = append(messages, *msg)
		}
	}

	resp := decodeStreamResponse{Count: len(messages), Messages: messages}
	if len(invalid) > 0 {
		resp.Invalid = invalid
	}
	writeJSON(w, http.StatusOK, resp)
}
