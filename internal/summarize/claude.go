package summarize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ClaudeCLI pipes the prompt to the claude CLI in print mode.
type ClaudeCLI struct {
	Command string
	Model   string
	Args    []string

	logger *RequestLogger
}

func (c *ClaudeCLI) args() []string {
	args := []string{"-p"}
	if c.Model != "" {
		args = append(args, "--model", c.Model)
	}
	return append(args, c.Args...)
}

func (c *ClaudeCLI) Summarize(ctx context.Context, prompt string) (string, error) {
	requestID := newRequestID()
	c.logger.LogRequest(requestID, "claude", prompt)

	cmd := exec.CommandContext(ctx, c.Command, c.args()...)
	cmd.Stdin = strings.NewReader(prompt)
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	startTime := time.Now()
	err := cmd.Run()
	duration := time.Since(startTime)

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case ctx.Err() != nil:
			err = fmt.Errorf("%w: %s: %w", ErrGenerationFailed, c.Command, ctx.Err())
		case errors.As(err, &exitErr):
			err = fmt.Errorf("%w: %s exited with %d: %s", ErrGenerationFailed, c.Command, exitErr.ExitCode(), tail(stderr.String(), 500))
		default:
			err = fmt.Errorf("%w: run %s: %w", ErrGenerationFailed, c.Command, err)
		}
		c.logger.LogError(requestID, "claude", err, duration)
		return "", err
	}

	out := stdout.String()
	c.logger.LogResponse(requestID, "claude", out, duration)
	return out, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
