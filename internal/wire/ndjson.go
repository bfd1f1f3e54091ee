// Package wire serializes messages to and from newline-delimited JSON.
package wire

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vigilith/vlp/internal/domain"
)

// Encode serializes messages one JSON object per line, \n separated, with
// no trailing delimiter.
func Encode(messages []domain.Message) ([]byte, error) {
	var buf bytes.Buffer
	for i, m := range messages {
		raw, err := json.Marshal(&m)
		if err != nil {
			return nil, fmt.Errorf("encode message %s: %w", m.ID, err)
		}
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.Write(raw)
	}
	return buf.Bytes(), nil
}

// EncodeTo streams messages to w, one per line.
func EncodeTo(w io.Writer, messages []domain.Message) error {
	raw, err := Encode(messages)
	if err != nil {
		return err
	}
	_, err = w.Write(raw)
	return err
}

// Line is one non-blank NDJSON line and its 1-based position in the
// stream. Blank lines count toward positions but are never returned.
type Line struct {
	Num int
	Raw []byte
}

// Lines splits an NDJSON stream into its non-blank lines without parsing
// them, so callers can validate the raw bytes of each line.
func Lines(r io.Reader) ([]Line, error) {
	var out []Line
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	n := 0
	for scanner.Scan() {
		n++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		out = append(out, Line{Num: n, Raw: []byte(text)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	return out, nil
}

// Decode parses an NDJSON stream line by line. Blank lines are skipped
// and a missing safety block defaults to level safe. The first malformed
// line aborts the decode with a line-numbered error; callers wanting
// per-line isolation should use Lines and decode each line themselves.
func Decode(r io.Reader) ([]domain.Message, error) {
	lines, err := Lines(r)
	if err != nil {
		return nil, err
	}

	var out []domain.Message
	for _, ln := range lines {
		var msg domain.Message
		if err := json.Unmarshal(ln.Raw, &msg); err != nil {
			return nil, fmt.Errorf("line %d: %w", ln.Num, err)
		}
		if msg.Safety.Level == "" {
			msg.Safety = domain.DefaultSafety()
		}
		if msg.Safety.Issues == nil {
			msg.Safety.Issues = []domain.SafetyIssue{}
		}
		out = append(out, msg)
	}
	return out, nil
}

// DecodeString parses NDJSON from a string.
func DecodeString(s string) ([]domain.Message, error) {
	return Decode(strings.NewReader(s))
}
