package summarize

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// RequestLogger appends prompts and responses to a daily JSONL file for debugging.
type RequestLogger struct {
	logDir       string
	logRequests  bool
	logResponses bool
	logger       *slog.Logger
}

type LogEntry struct {
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id"`
	Backend   string `json:"backend"`
	Type      string `json:"type"`
	Prompt    string `json:"prompt,omitempty"`
	Response  string `json:"response,omitempty"`
	Duration  string `json:"duration,omitempty"`
	Error     string `json:"error,omitempty"`
}

func NewRequestLogger(logDir string, logRequests, logResponses bool) *RequestLogger {
	return &RequestLogger{
		logDir:       logDir,
		logRequests:  logRequests,
		logResponses: logResponses,
		logger:       slog.Default(),
	}
}

func newRequestID() string {
	return "req_" + time.Now().UTC().Format("20060102T150405") + "_" + uuid.NewString()[:8]
}

func (l *RequestLogger) LogRequest(requestID, backend, prompt string) {
	if l == nil || !l.logRequests {
		return
	}

	l.writeLog(LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: requestID,
		Backend:   backend,
		Type:      "request",
		Prompt:    prompt,
	})
	l.logger.Debug("summarizer request", "request_id", requestID, "backend", backend, "prompt_chars", len(prompt))
}

func (l *RequestLogger) LogResponse(requestID, backend, response string, duration time.Duration) {
	if l == nil || !l.logResponses {
		return
	}

	l.writeLog(LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: requestID,
		Backend:   backend,
		Type:      "response",
		Response:  response,
		Duration:  duration.String(),
	})
}

func (l *RequestLogger) LogError(requestID, backend string, err error, duration time.Duration) {
	if l == nil {
		return
	}

	l.writeLog(LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: requestID,
		Backend:   backend,
		Type:      "error",
		Duration:  duration.String(),
		Error:     err.Error(),
	})

	l.logger.Error("summarizer request failed", "request_id", requestID, "backend", backend, "error", err)
}

func (l *RequestLogger) writeLog(entry LogEntry) {
	if l.logDir == "" {
		return
	}

	_ = os.MkdirAll(l.logDir, 0o755)

	logFile := filepath.Join(l.logDir, fmt.Sprintf("summarize_%s.jsonl", time.Now().Format("2006-01-02")))

	data, _ := json.Marshal(entry)
	f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()

	_, _ = f.Write(data)
	_, _ = f.WriteString("\n")
}
