package service

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vigilith/vlp/internal/domain"
	"github.com/vigilith/vlp/internal/ident"
	"github.com/vigilith/vlp/internal/schema"
	"go.uber.org/zap"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionEnded    = errors.New("session already ended")
)

// Session groups messages produced by one agent over one working period.
// The sequence counter starts at 0 and only moves through NextSeq.
type Session struct {
	AgentName   string
	AgentNumber int
	ID          string
	StartedAt   string

	seq atomic.Int64
}

func newSession(agentName string, agentNumber int) *Session {
	return &Session{
		AgentName:   agentName,
		AgentNumber: agentNumber,
		ID:          ident.SessionID(agentName, time.Now()),
		StartedAt:   ident.NowISO(),
	}
}

// NextSeq returns the next sequence number, strictly increasing by 1 per
// call. The first call returns 1. Safe for concurrent callers.
func (s *Session) NextSeq() int {
	return int(s.seq.Add(1))
}

// Seq returns the number of sequence numbers consumed so far.
func (s *Session) Seq() int {
	return int(s.seq.Load())
}

// MessageID formats a session-scoped message ID for an explicitly
// requested sequence number.
func (s *Session) MessageID(prefix string, seq int) string {
	return ident.SessionMessageID(s.ID, prefix, seq)
}

// SessionRegistry is a table of active sessions keyed by session ID.
// Entries are added by StartSession and removed by EndSession, never
// otherwise mutated.
type SessionRegistry struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	validator *ValidatorService
	logger    *zap.Logger
}

func NewSessionRegistry(validator *ValidatorService, logger *zap.Logger) *SessionRegistry {
	return &SessionRegistry{
		sessions:  make(map[string]*Session),
		validator: validator,
		logger:    logger,
	}
}

// StartSession creates and registers a new session. Session ID collisions
// are treated as cryptographically negligible and not checked.
func (r *SessionRegistry) StartSession(agentName string, agentNumber int) *Session {
	session := newSession(agentName, agentNumber)

	r.mu.Lock()
	r.sessions[session.ID] = session
	r.mu.Unlock()

	r.logger.Info("session started",
		zap.String("session_id", session.ID),
		zap.String("agent_name", agentName),
		zap.Int("agent_number", agentNumber))
	return session
}

// GetSession returns an active session by ID.
func (r *SessionRegistry) GetSession(sessionID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[sessionID]
	return session, ok
}

// EndSession emits a terminal session_context message summarizing the
// session and removes it from the registry. Ending a session twice fails
// with ErrSessionEnded. The registry is only mutated after the terminal
// message has been built, so a failed build leaves the session intact.
func (r *SessionRegistry) EndSession(session *Session, summary string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.ID]; !ok {
		return nil, fmt.Errorf("end session %s: %w", session.ID, ErrSessionEnded)
	}

	total := session.Seq()
	seq := session.NextSeq()
	content := summary
	if content == "" {
		content = fmt.Sprintf("Session ended for %s", session.AgentName)
	}

	confidence := 1.0
	msg, err := r.validator.MakeMessage(domain.TypeSessionContext, session.AgentName, content, MessageOptions{
		ID:         session.MessageID("CTX", seq),
		SessionID:  session.ID,
		Seq:        &seq,
		Confidence: &confidence,
		Provenance: domain.ProvenanceFromStrings("agent_session", fmt.Sprintf("agent_%d", session.AgentNumber)),
		Payload: map[string]any{
			"agent_number":   session.AgentNumber,
			"started_at":     session.StartedAt,
			"ended_at":       ident.NowISO(),
			"total_messages": total,
		},
	})
	if err != nil {
		return nil, err
	}

	delete(r.sessions, session.ID)
	r.logger.Info("session ended",
		zap.String("session_id", session.ID),
		zap.Int("total_messages", total))
	return msg, nil
}

// CreateClaim produces a claim message stamped with the session's ID and
// next sequence number. Confidence defaults to 0.9.
func (r *SessionRegistry) CreateClaim(session *Session, content any, opts MessageOptions) (*domain.Message, error) {
	seq := session.NextSeq()
	opts.ID = session.MessageID("CLM", seq)
	opts.SessionID = session.ID
	opts.Seq = &seq
	if opts.Confidence == nil {
		confidence := 0.9
		opts.Confidence = &confidence
	}
	return r.validator.MakeMessage(domain.TypeClaim, session.AgentName, content, opts)
}

var (
	defaultRegistry     *SessionRegistry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry lazily constructs a process-wide registry backed by the
// embedded schema. It is a convenience only; callers needing isolation
// (tests in particular) should build their own via NewSessionRegistry.
func DefaultRegistry() *SessionRegistry {
	defaultRegistryOnce.Do(func() {
		sv, err := schema.New()
		if err != nil {
			panic(fmt.Sprintf("vlp: embedded schema failed to compile: %v", err))
		}
		logger := zap.NewNop()
		defaultRegistry = NewSessionRegistry(NewValidatorService(sv, logger), logger)
	})
	return defaultRegistry
}
