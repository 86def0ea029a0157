// Package transcript reads the host agent's append-only JSONL conversation log.
//
// A read starts at a Cursor and stops at the file length observed when the read
// was opened, so lines appended while reading are left for the next run. Only
// newline-terminated lines are consumed; a trailing partial line is not part of
// the returned cursor.
package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrUnreadable marks a transcript that cannot be read as a whole.
var ErrUnreadable = errors.New("transcript unreadable")

const (
	maxLineBytes      = 10 * 1024 * 1024
	minUserTurnChars  = 10
	summaryLookahead  = 4
	compactionMarker  = "continued from a previous conversation"
	truncationSuffix  = "\n[...truncated...]"
	defaultTurnLength = 2000
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role      Role
	Content   string
	Timestamp time.Time
	Ordinal   int
}

// Cursor is the position up to which a transcript has been consumed.
type Cursor struct {
	Offset int64 `json:"offset"`
	Line   int   `json:"line"`
}

type Options struct {
	MaxTurnChars int
}

// Delta is a single, non-restartable read of the turns after a cursor.
type Delta struct {
	file    *os.File
	from    Cursor
	size    int64
	opts    Options
	cursor  Cursor
	rewound bool

	used     bool
	skipped  int
	summary  string
	awaiting int
	resumed  bool
	err      error
}

// Open prepares a read of path from the given cursor up to the file's current length.
func Open(path string, from Cursor, opts Options) (*Delta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnreadable, path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat %s: %v", ErrUnreadable, path, err)
	}

	if opts.MaxTurnChars <= 0 {
		opts.MaxTurnChars = defaultTurnLength
	}

	d := &Delta{file: f, size: info.Size(), opts: opts}

	if from.Offset < 0 || from.Offset > d.size {
		from = Cursor{}
		d.rewound = true
	}
	d.from = from
	d.cursor = from
	d.resumed = from.Offset > 0

	if _, err := f.Seek(from.Offset, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: seek %s: %v", ErrUnreadable, path, err)
	}

	return d, nil
}

type entry struct {
	Type      string `json:"type"`
	Subtype   string `json:"subtype"`
	IsMeta    bool   `json:"isMeta"`
	Timestamp string `json:"timestamp"`
	Message   struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"message"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Turns yields the conversation turns after the cursor. The sequence can be
// ranged over once; later calls yield nothing.
func (d *Delta) Turns() iter.Seq[Turn] {
	return func(yield func(Turn) bool) {
		if d.used {
			return
		}
		d.used = true

		sc := bufio.NewScanner(io.LimitReader(d.file, d.size-d.from.Offset))
		sc.Buffer(make([]byte, 0, 256*1024), maxLineBytes)
		sc.Split(scanCompleteLines)

		for sc.Scan() {
			raw := sc.Bytes()
			ordinal := d.cursor.Line
			d.cursor.Offset += int64(len(raw))
			d.cursor.Line++

			turn, ok := d.parse(bytes.TrimSpace(raw), ordinal)
			if !ok {
				continue
			}
			if !yield(turn) {
				return
			}
		}

		if err := sc.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				d.err = fmt.Errorf("%w: line %d exceeds %d bytes", ErrUnreadable, d.cursor.Line, maxLineBytes)
				return
			}
			d.err = fmt.Errorf("%w: %v", ErrUnreadable, err)
		}
	}
}

func (d *Delta) parse(line []byte, ordinal int) (Turn, bool) {
	if len(line) == 0 {
		return Turn{}, false
	}

	var e entry
	if err := json.Unmarshal(line, &e); err != nil {
		d.skipped++
		return Turn{}, false
	}

	if e.Type == "system" && e.Subtype == "compact_boundary" {
		d.awaiting = summaryLookahead
		return Turn{}, false
	}

	awaitingSummary := d.awaiting > 0
	if d.awaiting > 0 {
		d.awaiting--
	}

	if e.Type != "user" && e.Type != "assistant" {
		return Turn{}, false
	}

	role := Role(e.Message.Role)
	if role == "" {
		role = Role(e.Type)
	}

	text, hasToolUse := extractText(e.Message.Content)

	if role == RoleUser {
		// A read resumed mid-log may begin right after a boundary the previous
		// read already consumed, so its first user entry is checked as well.
		first := d.resumed
		d.resumed = false

		if (awaitingSummary || first) && strings.Contains(text, compactionMarker) {
			d.summary = text
			d.awaiting = 0
			return Turn{}, false
		}
	}

	if role == RoleAssistant && hasToolUse {
		return Turn{}, false
	}

	if role == RoleUser && (e.IsMeta || isSystemContent(text)) {
		return Turn{}, false
	}

	if strings.TrimSpace(text) == "" {
		return Turn{}, false
	}

	if role == RoleUser && utf8.RuneCountInString(text) < minUserTurnChars {
		return Turn{}, false
	}

	ts, _ := time.Parse(time.RFC3339Nano, e.Timestamp)

	return Turn{
		Role:      role,
		Content:   truncateHead(text, d.opts.MaxTurnChars),
		Timestamp: ts,
		Ordinal:   ordinal,
	}, true
}

// Cursor returns the position after the last consumed line. Valid after Turns has been ranged over.
func (d *Delta) Cursor() Cursor {
	return d.cursor
}

// Rewound reports whether the stored cursor pointed past the end of the file and the read restarted at zero.
func (d *Delta) Rewound() bool {
	return d.rewound
}

// Skipped is the number of malformed lines ignored.
func (d *Delta) Skipped() int {
	return d.skipped
}

// CompactionSummary is the host's own compaction summary found after the last
// compact boundary in this delta, if any.
func (d *Delta) CompactionSummary() string {
	return d.summary
}

// Err reports a whole-log read failure encountered while iterating.
func (d *Delta) Err() error {
	return d.err
}

func (d *Delta) Close() error {
	return d.file.Close()
}

// scanCompleteLines splits on '\n', keeping the terminator so callers can
// account for consumed bytes. A final unterminated line is never returned.
func scanCompleteLines(data []byte, atEOF bool) (int, []byte, error) {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, data[:i+1], nil
	}
	return 0, nil, nil
}

// extractText returns the text of a message and whether it contains tool_use blocks.
func extractText(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str, false
	}

	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", false
	}

	hasToolUse := false
	var texts []string
	for _, b := range blocks {
		switch b.Type {
		case "text":
			texts = append(texts, b.Text)
		case "tool_use":
			hasToolUse = true
		}
	}

	return strings.Join(texts, "\n"), hasToolUse
}

func isSystemContent(text string) bool {
	return strings.HasPrefix(text, "<local-command-") ||
		strings.HasPrefix(text, "<command-name>") ||
		strings.Contains(text, "<system-reminder>")
}

func truncateHead(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}

	runes := []rune(text)
	return string(runes[:maxChars]) + truncationSuffix
}

// Format renders turns as "[role]: text" blocks. When the result exceeds
// maxChars only the most recent maxChars characters are kept.
func Format(turns []Turn, maxChars int) string {
	parts := make([]string, 0, len(turns))
	for _, t := range turns {
		parts = append(parts, fmt.Sprintf("[%s]: %s", t.Role, t.Content))
	}

	text := strings.Join(parts, "\n\n")
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}

	runes := []rune(text)
	return string(runes[len(runes)-maxChars:])
}
