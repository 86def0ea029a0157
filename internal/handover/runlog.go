package handover

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const runLogFile = "runs.jsonl"

type RunStatus string

const (
	RunStarted   RunStatus = "started"
	RunContended RunStatus = "contended"
	RunNoOp      RunStatus = "noop"
	RunDone      RunStatus = "done"
	RunFailed    RunStatus = "failed"
)

type RunRecord struct {
	RunID     string    `json:"run_id"`
	SessionID string    `json:"session_id"`
	Status    RunStatus `json:"status"`
	Passes    int       `json:"passes,omitempty"`
	Turns     int       `json:"turns,omitempty"`
	Timestamp time.Time `json:"ts"`
	Duration  string    `json:"duration,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// RunLog is an append-only JSONL history of worker runs in the state directory.
type RunLog struct {
	path string
	mu   sync.Mutex
}

func NewRunLog(stateDir string) *RunLog {
	return &RunLog{path: filepath.Join(stateDir, runLogFile)}
}

func newRunID() string {
	return "run_" + uuid.NewString()
}

// Append writes one record. A nil RunLog discards it.
func (l *RunLog) Append(rec RunRecord) error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("append run log: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("append run log: %w", err)
	}
	defer file.Close()

	return json.NewEncoder(file).Encode(rec)
}

// Recent returns up to limit records, newest last. Unparsable lines are skipped.
func (l *RunLog) Recent(limit int) ([]RunRecord, error) {
	file, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read run log: %w", err)
	}
	defer file.Close()

	var records []RunRecord
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec RunRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		records = append(records, rec)
		if limit > 0 && len(records) > limit {
			records = records[1:]
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read run log: %w", err)
	}
	return records, nil
}
