package handover

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/erg0nix/handover/internal/atomicfile"
	"github.com/erg0nix/handover/internal/transcript"
)

// ErrWrite marks a failure to persist the artifact, its metadata, the ready
// marker or the status record.
var ErrWrite = errors.New("write failed")

const markerPrefix = ".handover-ready-"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

func safeID(sessionID string) string {
	return unsafeChars.ReplaceAllString(sessionID, "_")
}

// ArtifactPath is where the handover document for sessionID lives: next to
// the transcript it summarizes.
func ArtifactPath(transcriptPath, sessionID string) string {
	return filepath.Join(filepath.Dir(transcriptPath), "HANDOVER-"+safeID(sessionID)+".md")
}

// LockDir holds the per-session claim files.
func LockDir(stateDir string) string {
	return filepath.Join(stateDir, "locks")
}

func metaPath(artifactPath string) string {
	return strings.TrimSuffix(artifactPath, ".md") + ".meta.json"
}

func errorLogPath(artifactPath string) string {
	return strings.TrimSuffix(artifactPath, ".md") + ".error.log"
}

// Meta is the sidecar recording how much of the transcript the artifact covers.
// Digest identifies the artifact content the cursor belongs to.
type Meta struct {
	SessionID string            `json:"session_id"`
	Cursor    transcript.Cursor `json:"cursor"`
	Digest    string            `json:"digest"`
	Runs      int               `json:"runs"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Covers reports whether meta was written for exactly this artifact content.
func (m Meta) Covers(content string) bool {
	return m.Digest != "" && m.Digest == Digest(content)
}

// Digest is the hex SHA-256 of an artifact's content.
func Digest(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Store owns the on-disk layout: artifacts and their sidecars next to the
// transcript, ready markers in the state directory.
type Store struct {
	StateDir string
}

func NewStore(stateDir string) *Store {
	return &Store{StateDir: stateDir}
}

// ReadArtifact returns nil when no artifact exists yet.
func (s *Store) ReadArtifact(artifactPath string) (*string, error) {
	data, err := os.ReadFile(artifactPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	content := string(data)
	return &content, nil
}

func (s *Store) WriteArtifact(artifactPath, content string) error {
	if err := atomicfile.WriteFile(artifactPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("%w: artifact: %w", ErrWrite, err)
	}
	return nil
}

// LoadMeta reports false when the sidecar is missing or unparsable.
func (s *Store) LoadMeta(artifactPath string) (Meta, bool, error) {
	data, err := os.ReadFile(metaPath(artifactPath))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Meta{}, false, nil
		}
		return Meta{}, false, fmt.Errorf("read artifact meta: %w", err)
	}

	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, false, nil
	}
	return meta, true, nil
}

func (s *Store) SaveMeta(artifactPath string, meta Meta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: meta: %w", ErrWrite, err)
	}

	if err := atomicfile.WriteFile(metaPath(artifactPath), data, 0o644); err != nil {
		return fmt.Errorf("%w: meta: %w", ErrWrite, err)
	}
	return nil
}

func (s *Store) MarkerPath(sessionID string) string {
	return filepath.Join(s.StateDir, markerPrefix+safeID(sessionID))
}

// SetMarker records that a fresh artifact is waiting to be injected.
func (s *Store) SetMarker(sessionID, artifactPath string) error {
	if err := os.MkdirAll(s.StateDir, 0o755); err != nil {
		return fmt.Errorf("%w: marker: %w", ErrWrite, err)
	}

	if err := atomicfile.WriteFile(s.MarkerPath(sessionID), []byte(artifactPath), 0o644); err != nil {
		return fmt.Errorf("%w: marker: %w", ErrWrite, err)
	}
	return nil
}

// HasMarker reports whether a marker is pending for sessionID.
func (s *Store) HasMarker(sessionID string) bool {
	_, err := os.Stat(s.MarkerPath(sessionID))
	return err == nil
}

// ConsumeMarker removes the marker and returns the artifact path it carried.
// Only the caller whose Remove succeeds gets ok == true.
func (s *Store) ConsumeMarker(sessionID string) (artifactPath string, ok bool, err error) {
	path := s.MarkerPath(sessionID)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read marker: %w", err)
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("remove marker: %w", err)
	}

	return strings.TrimSpace(string(data)), true, nil
}

// WriteErrorLog overwrites the per-session error log with one timestamped line.
func (s *Store) WriteErrorLog(artifactPath string, cause error) error {
	line := fmt.Sprintf("%s: %v\n", time.Now().Format(time.RFC3339), cause)
	if err := os.WriteFile(errorLogPath(artifactPath), []byte(line), 0o644); err != nil {
		return fmt.Errorf("write error log: %w", err)
	}
	return nil
}
