// Package claim provides a crash-tolerant, per-session exclusive claim backed by a lock file.
//
// A claim is acquired by creating the lock file with O_EXCL. A lock whose holder
// process is gone, or whose acquisition time is older than the staleness window,
// is reclaimable. Reclaiming moves the stale file aside under a unique name and
// checks that the moved file is the one judged stale, so two processes racing to
// reclaim cannot both end up holding the claim.
package claim

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrContended is returned when a live holder already owns the claim.
var ErrContended = errors.New("claim held by another process")

// ContendedError describes the holder that won.
type ContendedError struct {
	SessionID string
	HolderPID int
	Since     time.Time
}

func (e *ContendedError) Error() string {
	return fmt.Sprintf("session %s: claim held by pid %d since %s", e.SessionID, e.HolderPID, e.Since.Format(time.RFC3339))
}

func (e *ContendedError) Unwrap() error {
	return ErrContended
}

type holder struct {
	PID        int       `json:"pid"`
	Token      string    `json:"token"`
	SessionID  string    `json:"session_id"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Locker hands out claims stored under Dir.
type Locker struct {
	Dir        string
	StaleAfter time.Duration

	now   func() time.Time
	alive func(pid int) bool
}

// NewLocker returns a Locker keeping lock files in dir.
func NewLocker(dir string, staleAfter time.Duration) *Locker {
	return &Locker{
		Dir:        dir,
		StaleAfter: staleAfter,
		now:        time.Now,
		alive:      processAlive,
	}
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Path returns the lock file used for sessionID.
func (l *Locker) Path(sessionID string) string {
	return filepath.Join(l.Dir, unsafeChars.ReplaceAllString(sessionID, "_")+".lock")
}

// Acquire takes the claim for sessionID. It returns an error wrapping ErrContended
// when another live process holds it.
func (l *Locker) Acquire(sessionID string) (*Claim, error) {
	if sessionID == "" {
		return nil, errors.New("acquire claim: empty session id")
	}

	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("acquire claim: mkdir: %w", err)
	}

	path := l.Path(sessionID)

	for attempt := 0; attempt < 3; attempt++ {
		c, err := l.create(path, sessionID)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("acquire claim %s: %w", sessionID, err)
		}

		raw, current, err := readHolder(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("acquire claim %s: %w", sessionID, err)
		}

		if !l.stale(path, current) || !l.reclaim(path, raw) {
			return nil, contended(sessionID, current)
		}
	}

	return nil, &ContendedError{SessionID: sessionID}
}

func contended(sessionID string, h *holder) error {
	if h == nil {
		return &ContendedError{SessionID: sessionID}
	}
	return &ContendedError{SessionID: sessionID, HolderPID: h.PID, Since: h.AcquiredAt}
}

func (l *Locker) create(path, sessionID string) (*Claim, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	h := holder{
		PID:        os.Getpid(),
		Token:      uuid.NewString(),
		SessionID:  sessionID,
		AcquiredAt: l.now().UTC(),
	}

	data, _ := json.Marshal(h)
	_, werr := f.Write(data)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write lock file: %w", errors.Join(werr, cerr))
	}

	return &Claim{sessionID: sessionID, path: path, token: h.Token, pid: h.PID}, nil
}

// stale reports whether the claim described by h may be taken over. An unparsable
// lock (holder crashed between create and write) falls back to the file's mtime.
func (l *Locker) stale(path string, h *holder) bool {
	if h == nil {
		info, err := os.Stat(path)
		if err != nil {
			return true
		}
		return l.now().Sub(info.ModTime()) > l.StaleAfter
	}

	if h.PID <= 0 || !l.alive(h.PID) {
		return true
	}

	return l.now().Sub(h.AcquiredAt) > l.StaleAfter
}

func (l *Locker) reclaim(path string, observed []byte) bool {
	tomb := path + ".stale-" + uuid.NewString()

	if err := os.Rename(path, tomb); err != nil {
		// Someone else already moved it; the next create attempt decides.
		return errors.Is(err, fs.ErrNotExist)
	}
	defer os.Remove(tomb)

	moved, err := os.ReadFile(tomb)
	if err == nil && string(moved) == string(observed) {
		return true
	}

	// We moved a fresh claim taken by a concurrent reclaimer. Put it back unless
	// the path was already re-created.
	_ = os.Link(tomb, path)
	return false
}

func readHolder(path string) ([]byte, *holder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	var h holder
	if err := json.Unmarshal(data, &h); err != nil || h.Token == "" {
		return data, nil, nil
	}
	return data, &h, nil
}

// Claim is a held exclusive claim. Release is safe to call more than once.
type Claim struct {
	sessionID string
	path      string
	token     string
	pid       int

	mu       sync.Mutex
	released bool
}

// SessionID returns the session the claim was acquired for.
func (c *Claim) SessionID() string {
	return c.sessionID
}

// Held reports whether the claim has not been released and the lock file still
// carries this claim's token.
func (c *Claim) Held() bool {
	if c == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return false
	}

	_, h, err := readHolder(c.path)
	return err == nil && h != nil && h.Token == c.token
}

// Release removes the lock file if it still belongs to this claim.
func (c *Claim) Release() error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return nil
	}
	c.released = true

	_, h, err := readHolder(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("release claim %s: %w", c.sessionID, err)
	}

	if h == nil || h.Token != c.token {
		return nil
	}

	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("release claim %s: %w", c.sessionID, err)
	}
	return nil
}
