// Package launch starts processes that outlive the hook that spawned them.
package launch

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Spec describes a detached process. Output goes to LogPath, appended.
type Spec struct {
	Executable string
	Args       []string
	LogPath    string
	Dir        string
}

// WorkerArgs builds the command line for a background worker run.
func WorkerArgs(sessionID, transcriptPath, configPath string) []string {
	args := []string{"worker", "--session", sessionID, "--transcript", transcriptPath}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	return args
}

// Detached starts spec in its own session with stdin closed and returns its pid.
// The caller never waits on the child.
func Detached(spec Spec) (int, error) {
	if spec.Executable == "" {
		return 0, errors.New("launch: executable is required")
	}

	cmd := exec.Command(spec.Executable, spec.Args...)
	cmd.Dir = spec.Dir
	detach(cmd)

	if spec.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(spec.LogPath), 0o755); err != nil {
			return 0, fmt.Errorf("launch: create log dir: %w", err)
		}

		out, err := os.OpenFile(spec.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return 0, fmt.Errorf("launch: open log: %w", err)
		}
		defer out.Close()

		cmd.Stdout = out
		cmd.Stderr = out
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("launch %s: %w", filepath.Base(spec.Executable), err)
	}

	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("launch: release: %w", err)
	}

	return pid, nil
}
