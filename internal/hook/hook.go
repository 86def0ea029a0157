// Package hook decodes the JSON payload the host passes to hook commands on stdin.
package hook

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const maxPayload = 1 << 20

// ErrIncomplete means the payload parsed but lacks the session id or transcript path.
var ErrIncomplete = errors.New("hook payload missing session_id or transcript_path")

// Input is the part of the host payload the hooks use. Unknown fields are ignored.
type Input struct {
	SessionID      string `json:"session_id"`
	TranscriptPath string `json:"transcript_path"`
	HookEventName  string `json:"hook_event_name,omitempty"`
	Source         string `json:"source,omitempty"`
	Cwd            string `json:"cwd,omitempty"`
}

// Read decodes one payload from r. An empty stream yields a zero Input and no error.
func Read(r io.Reader) (Input, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxPayload))
	if err != nil {
		return Input{}, fmt.Errorf("read hook input: %w", err)
	}

	if strings.TrimSpace(string(data)) == "" {
		return Input{}, nil
	}

	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return Input{}, fmt.Errorf("parse hook input: %w", err)
	}

	in.SessionID = strings.TrimSpace(in.SessionID)
	in.TranscriptPath = strings.TrimSpace(in.TranscriptPath)
	return in, nil
}

// Validate returns ErrIncomplete unless in names both a session and its transcript.
func (in Input) Validate() error {
	if in.SessionID == "" || in.TranscriptPath == "" {
		return ErrIncomplete
	}
	return nil
}

// FromCompaction reports whether a SessionStart payload follows a compaction.
// Payloads without a source are accepted.
func (in Input) FromCompaction() bool {
	return in.Source == "" || in.Source == "compact"
}
