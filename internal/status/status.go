// Package status persists the single, installation-wide progress record of the handover worker.
//
// Exactly one process writes the record at a time: Write requires an Owner that
// currently holds the claim for the record's session. Readers never lock; they
// see either the previous or the next record because every write is an atomic
// file replace.
package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/erg0nix/handover/internal/atomicfile"
)

// FileName is the status record's name inside the state directory.
const FileName = "handover-status.json"

type Phase string

const (
	PhasePass1 Phase = "pass1"
	PhasePass2 Phase = "pass2"
	PhaseDone  Phase = "done"
	PhaseError Phase = "error"
)

// Active reports whether the phase belongs to a run still in progress.
func (p Phase) Active() bool {
	return p == PhasePass1 || p == PhasePass2
}

type Record struct {
	Phase        Phase     `json:"phase"`
	Step         int       `json:"step"`
	Total        int       `json:"total"`
	SessionID    string    `json:"session_id"`
	UpdatedAt    time.Time `json:"updated_at"`
	Error        string    `json:"error,omitempty"`
	ArtifactPath string    `json:"artifact_path,omitempty"`
}

// Empty is returned by reads when there is nothing current to show.
var Empty = Record{}

// IsEmpty reports whether r is the Empty sentinel.
func (r Record) IsEmpty() bool {
	return r.Phase == "" && r.SessionID == ""
}

// Owner is the write capability: a held exclusivity claim for one session.
type Owner interface {
	SessionID() string
	Held() bool
}

// ErrNotOwner is returned when a write is attempted without holding the session's claim.
var ErrNotOwner = errors.New("status write requires the session claim")

type Recorder struct {
	Path     string
	FreshFor time.Duration

	now func() time.Time
}

func NewRecorder(stateDir string, freshFor time.Duration) *Recorder {
	return &Recorder{
		Path:     filepath.Join(stateDir, FileName),
		FreshFor: freshFor,
		now:      time.Now,
	}
}

// Write stamps rec with the current time and atomically replaces the record.
func (r *Recorder) Write(owner Owner, rec Record) error {
	if owner == nil || !owner.Held() || owner.SessionID() != rec.SessionID {
		return fmt.Errorf("write status for %s: %w", rec.SessionID, ErrNotOwner)
	}

	rec.UpdatedAt = r.now().UTC()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("write status: marshal: %w", err)
	}

	if err := atomicfile.WriteFile(r.Path, data, 0o644); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	return nil
}

// Read returns the last record, or Empty when it is absent, unreadable or older
// than FreshFor. Only I/O errors other than a missing file are reported.
func (r *Recorder) Read() (Record, error) {
	data, err := os.ReadFile(r.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Empty, nil
		}
		return Empty, fmt.Errorf("read status: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Empty, nil
	}

	if r.FreshFor > 0 && r.now().Sub(rec.UpdatedAt) > r.FreshFor {
		return Empty, nil
	}

	return rec, nil
}

// ReadFor is Read narrowed to one session: another session's record reads as Empty.
func (r *Recorder) ReadFor(sessionID string) (Record, error) {
	rec, err := r.Read()
	if err != nil || rec.IsEmpty() {
		return Empty, err
	}

	if sessionID != "" && rec.SessionID != sessionID {
		return Empty, nil
	}
	return rec, nil
}

// Label renders the short status-bar text for rec. A finished run is shown as
// ready only for readyFor after completion.
func (rec Record) Label(now time.Time, readyFor time.Duration) string {
	progress := ""
	if rec.Total > 0 {
		progress = fmt.Sprintf(" (%d/%d)", rec.Step, rec.Total)
	}

	switch rec.Phase {
	case PhasePass1:
		return "HANDOVER extracting" + progress
	case PhasePass2:
		return "HANDOVER merging" + progress
	case PhaseError:
		return "HANDOVER failed"
	case PhaseDone:
		if !rec.UpdatedAt.IsZero() && now.Sub(rec.UpdatedAt) < readyFor {
			return "HANDOVER ready"
		}
	}
	return ""
}
