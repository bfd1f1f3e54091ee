// Package ident generates VLP message and session identifiers.
package ident

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultPrefix is used for message IDs when the caller supplies none.
const DefaultPrefix = "MSG"

var whitespace = regexp.MustCompile(`\s+`)

// NewID returns the prefix followed by 8 random lowercase hex characters.
// Randomness comes from uuid's crypto/rand-backed source, so collisions
// within one process's message volume are negligible.
func NewID(prefix string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	u := uuid.New()
	return prefix + hex.EncodeToString(u[:4])
}

// NowISO returns the current UTC instant truncated to whole seconds in
// YYYY-MM-DDTHH:MM:SSZ form.
func NowISO() string {
	return time.Now().UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")
}

// SessionID builds a session identifier of the form
// S-{YYYY-MM-DD}-{slug}-{6hex}. The slug is the agent name lowercased with
// a leading "the " stripped, whitespace runs collapsed to single hyphens,
// and truncated to 12 characters.
func SessionID(agentName string, date time.Time) string {
	slug := strings.ToLower(agentName)
	slug = strings.TrimPrefix(slug, "the ")
	slug = whitespace.ReplaceAllString(strings.TrimSpace(slug), "-")
	if len(slug) > 12 {
		slug = slug[:12]
	}
	u := uuid.New()
	return fmt.Sprintf("S-%s-%s-%s", date.UTC().Format("2006-01-02"), slug, hex.EncodeToString(u[:3]))
}

// SessionMessageID builds a session-scoped message ID:
// {prefix}-{last 6 chars of sessionID}-{seq zero-padded to 4 digits}.
// Sequence numbers past 9999 widen the field rather than wrapping or
// truncating.
func SessionMessageID(sessionID, prefix string, seq int) string {
	tail := sessionID
	if len(tail) > 6 {
		tail = tail[len(tail)-6:]
	}
	return fmt.Sprintf("%s-%s-%04d", prefix, tail, seq)
}
