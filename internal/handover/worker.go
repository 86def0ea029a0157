// Package handover runs the background generation of a session's handover
// document and surfaces the result to the next prompt.
package handover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/erg0nix/handover/internal/claim"
	"github.com/erg0nix/handover/internal/config"
	"github.com/erg0nix/handover/internal/status"
	"github.com/erg0nix/handover/internal/transcript"
)

type Outcome int

const (
	// OutcomeContended: another live worker holds the session.
	OutcomeContended Outcome = iota
	// OutcomeNoOp: nothing new since the last artifact.
	OutcomeNoOp
	OutcomeDone
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeContended:
		return "contended"
	case OutcomeNoOp:
		return "noop"
	case OutcomeDone:
		return "done"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

type Job struct {
	SessionID      string
	TranscriptPath string
}

// Passes is the summarization capability the worker drives.
type Passes interface {
	Extract(ctx context.Context, compactionSummary, transcriptText string) (string, error)
	Merge(ctx context.Context, prior, fragment string) (string, error)
}

type Worker struct {
	Locker   *claim.Locker
	Status   *status.Recorder
	Store    *Store
	Runs     *RunLog
	Passes   Passes
	Options  transcript.Options
	MaxChars int
}

func NewWorker(cfg config.Config, passes Passes) *Worker {
	return &Worker{
		Locker:   claim.NewLocker(LockDir(cfg.StateDir), cfg.Claim.StaleAfter()),
		Status:   status.NewRecorder(cfg.StateDir, cfg.Status.FreshFor()),
		Store:    NewStore(cfg.StateDir),
		Runs:     NewRunLog(cfg.StateDir),
		Passes:   passes,
		Options:  transcript.Options{MaxTurnChars: cfg.Summarizer.MaxTurnChars},
		MaxChars: cfg.Summarizer.MaxTranscriptChars,
	}
}

// run carries the state of one Worker.Run invocation.
type run struct {
	id           string
	job          Job
	claim        *claim.Claim
	artifactPath string
	started      time.Time
	passes       int
	turns        int
}

// Run produces or refreshes the handover artifact for job. Contention and an
// empty delta are not errors. On failure the previous artifact is left as it
// was and no ready marker is set.
func (w *Worker) Run(ctx context.Context, job Job) (Outcome, error) {
	if job.SessionID == "" || job.TranscriptPath == "" {
		return OutcomeFailed, errors.New("run worker: session id and transcript path are required")
	}

	r := &run{
		id:           newRunID(),
		job:          job,
		artifactPath: ArtifactPath(job.TranscriptPath, job.SessionID),
		started:      time.Now(),
	}

	c, err := w.Locker.Acquire(job.SessionID)
	if err != nil {
		if errors.Is(err, claim.ErrContended) {
			slog.Info("handover already running", "session", job.SessionID, "reason", err)
			w.record(r, RunContended, nil)
			return OutcomeContended, nil
		}
		return OutcomeFailed, fmt.Errorf("run worker: %w", err)
	}
	r.claim = c
	defer func() {
		if err := c.Release(); err != nil {
			slog.Warn("failed to release claim", "session", job.SessionID, "error", err)
		}
	}()

	w.record(r, RunStarted, nil)

	outcome, err := w.generate(ctx, r)
	if err != nil {
		w.fail(r, err)
		return OutcomeFailed, err
	}

	if outcome == OutcomeNoOp {
		slog.Info("no new turns since last handover", "session", job.SessionID)
		w.record(r, RunNoOp, nil)
		return OutcomeNoOp, nil
	}

	slog.Info("handover ready", "session", job.SessionID, "path", r.artifactPath, "passes", r.passes, "turns", r.turns)
	w.record(r, RunDone, nil)
	return OutcomeDone, nil
}

func (w *Worker) generate(ctx context.Context, r *run) (Outcome, error) {
	prior, err := w.Store.ReadArtifact(r.artifactPath)
	if err != nil {
		return OutcomeFailed, err
	}

	meta := Meta{SessionID: r.job.SessionID}
	if prior != nil {
		stored, ok, err := w.Store.LoadMeta(r.artifactPath)
		if err != nil {
			return OutcomeFailed, err
		}

		switch {
		case !ok:
			slog.Warn("artifact has no cursor, rebuilding from the start of the transcript", "session", r.job.SessionID)
			prior = nil
		case !stored.Covers(*prior):
			slog.Warn("artifact does not match its cursor, rebuilding from the start of the transcript", "session", r.job.SessionID)
			prior = nil
			meta.Runs = stored.Runs
		default:
			meta = stored
		}
	}

	delta, err := transcript.Open(r.job.TranscriptPath, meta.Cursor, w.Options)
	if err != nil {
		return OutcomeFailed, err
	}
	defer delta.Close()

	turns := slices.Collect(delta.Turns())
	if err := delta.Err(); err != nil {
		return OutcomeFailed, err
	}

	if delta.Rewound() {
		slog.Warn("transcript shorter than stored cursor, reading from start", "session", r.job.SessionID, "cursor", meta.Cursor.Offset)
	}
	if n := delta.Skipped(); n > 0 {
		slog.Warn("skipped malformed transcript lines", "session", r.job.SessionID, "count", n)
	}

	if len(turns) == 0 {
		return OutcomeNoOp, nil
	}
	r.turns = len(turns)

	text := transcript.Format(turns, w.MaxChars)

	total := 1
	if prior != nil {
		total = 2
	}

	if err := w.progress(r, status.PhasePass1, 1, total); err != nil {
		return OutcomeFailed, err
	}

	content, err := w.Passes.Extract(ctx, delta.CompactionSummary(), text)
	if err != nil {
		return OutcomeFailed, err
	}
	r.passes = 1

	if prior != nil {
		if err := w.progress(r, status.PhasePass2, 2, total); err != nil {
			return OutcomeFailed, err
		}

		content, err = w.Passes.Merge(ctx, *prior, content)
		if err != nil {
			return OutcomeFailed, err
		}
		r.passes = 2
	}

	// The sidecar goes first and names the content it covers. A run that dies
	// before the artifact rename leaves a digest mismatch, which the next run
	// rebuilds from instead of folding the same turns in twice.
	meta.SessionID = r.job.SessionID
	meta.Cursor = delta.Cursor()
	meta.Digest = Digest(content)
	meta.Runs++
	meta.UpdatedAt = time.Now().UTC()
	if err := w.Store.SaveMeta(r.artifactPath, meta); err != nil {
		return OutcomeFailed, err
	}

	if err := w.Store.WriteArtifact(r.artifactPath, content); err != nil {
		return OutcomeFailed, err
	}

	if err := w.Store.SetMarker(r.job.SessionID, r.artifactPath); err != nil {
		return OutcomeFailed, err
	}

	if err := w.progress(r, status.PhaseDone, total, total); err != nil {
		return OutcomeFailed, err
	}

	return OutcomeDone, nil
}

func (w *Worker) progress(r *run, phase status.Phase, step, total int) error {
	rec := status.Record{
		Phase:     phase,
		Step:      step,
		Total:     total,
		SessionID: r.job.SessionID,
	}
	if phase == status.PhaseDone {
		rec.ArtifactPath = r.artifactPath
	}

	if err := w.Status.Write(r.claim, rec); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

func (w *Worker) fail(r *run, cause error) {
	slog.Error("handover generation failed", "session", r.job.SessionID, "error", cause)

	rec := status.Record{
		Phase:     status.PhaseError,
		SessionID: r.job.SessionID,
		Error:     cause.Error(),
	}
	if err := w.Status.Write(r.claim, rec); err != nil {
		slog.Warn("failed to record error status", "session", r.job.SessionID, "error", err)
	}

	if err := w.Store.WriteErrorLog(r.artifactPath, cause); err != nil {
		slog.Warn("failed to write error log", "session", r.job.SessionID, "error", err)
	}

	w.record(r, RunFailed, cause)
}

func (w *Worker) record(r *run, s RunStatus, cause error) {
	rec := RunRecord{
		RunID:     r.id,
		SessionID: r.job.SessionID,
		Status:    s,
		Passes:    r.passes,
		Turns:     r.turns,
	}
	if s != RunStarted {
		rec.Duration = time.Since(r.started).Round(time.Millisecond).String()
	}
	if cause != nil {
		rec.Error = cause.Error()
	}

	if err := w.Runs.Append(rec); err != nil {
		slog.Warn("failed to append run log", "session", r.job.SessionID, "error", err)
	}
}
