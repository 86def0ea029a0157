package transcript

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func userLine(text string) string {
	return fmt.Sprintf(`{"type":"user","timestamp":"2026-01-02T03:04:05Z","message":{"role":"user","content":%q}}`, text)
}

func assistantLine(text string) string {
	return fmt.Sprintf(`{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":%q}]}}`, text)
}

const toolUseLine = `{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"let me look"},{"type":"tool_use","name":"Read","input":{}}]}}`
const toolResultLine = `{"type":"user","message":{"role":"user","content":[{"type":"tool_result","content":"file body"}]}}`
const boundaryLine = `{"type":"system","subtype":"compact_boundary"}`

func writeTranscript(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.jsonl")
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readAll(t *testing.T, path string, from Cursor, opts Options) ([]Turn, *Delta) {
	t.Helper()
	d, err := Open(path, from, opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	var turns []Turn
	for turn := range d.Turns() {
		turns = append(turns, turn)
	}
	if err := d.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}
	return turns, d
}

func TestTurns_FiltersNoise(t *testing.T) {
	path := writeTranscript(t,
		userLine("please refactor the parser"),
		toolUseLine,
		toolResultLine,
		assistantLine("I chose a recursive descent parser because the grammar is LL(1)."),
		userLine("ok"),
		`{"type":"user","isMeta":true,"message":{"role":"user","content":"meta caveat message"}}`,
		userLine("<command-name>/clear</command-name>"),
		`{"type":"summary","summary":"irrelevant"}`,
	)

	turns, d := readAll(t, path, Cursor{}, Options{})

	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d: %+v", len(turns), turns)
	}
	if turns[0].Role != RoleUser || turns[0].Content != "please refactor the parser" {
		t.Errorf("turn 0: %+v", turns[0])
	}
	if turns[0].Ordinal != 0 || turns[0].Timestamp.IsZero() {
		t.Errorf("turn 0 ordinal/timestamp: %+v", turns[0])
	}
	if turns[1].Role != RoleAssistant || turns[1].Ordinal != 3 {
		t.Errorf("turn 1: %+v", turns[1])
	}
	if d.Cursor().Line != 8 {
		t.Errorf("cursor line: got %d, want 8", d.Cursor().Line)
	}
	if d.Skipped() != 0 {
		t.Errorf("skipped: got %d, want 0", d.Skipped())
	}
}

func TestTurns_SkipsMalformedLines(t *testing.T) {
	path := writeTranscript(t,
		userLine("first directive from the user"),
		`{"type":"user", this is not json`,
		`garbage`,
		assistantLine("second turn survives"),
	)

	turns, d := readAll(t, path, Cursor{}, Options{})

	if len(turns) != 2 {
		t.Fatalf("expected 2 turns around malformed lines, got %d", len(turns))
	}
	if d.Skipped() != 2 {
		t.Errorf("skipped: got %d, want 2", d.Skipped())
	}
}

func TestTurns_ResumesFromCursor(t *testing.T) {
	path := writeTranscript(t,
		userLine("turn one from the user"),
		assistantLine("turn two from the assistant"),
	)

	_, first := readAll(t, path, Cursor{}, Options{})
	cursor := first.Cursor()

	info, _ := os.Stat(path)
	if cursor.Offset != info.Size() {
		t.Fatalf("cursor offset: got %d, want %d", cursor.Offset, info.Size())
	}

	turns, again := readAll(t, path, cursor, Options{})
	if len(turns) != 0 {
		t.Fatalf("expected empty delta, got %d turns", len(turns))
	}
	if again.Cursor() != cursor {
		t.Fatalf("empty delta moved cursor: %+v -> %+v", cursor, again.Cursor())
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	fmt.Fprintln(f, userLine("turn three arrives later"))
	f.Close()

	turns, third := readAll(t, path, cursor, Options{})
	if len(turns) != 1 || turns[0].Content != "turn three arrives later" {
		t.Fatalf("expected only the appended turn, got %+v", turns)
	}
	if turns[0].Ordinal != 2 {
		t.Errorf("ordinal: got %d, want 2", turns[0].Ordinal)
	}
	if third.Cursor().Line != 3 {
		t.Errorf("cursor line: got %d, want 3", third.Cursor().Line)
	}
}

func TestTurns_LeavesPartialTrailingLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	complete := userLine("a complete line of text") + "\n"
	partial := `{"type":"user","message":{"role":"user","content":"half wri`
	if err := os.WriteFile(path, []byte(complete+partial), 0o644); err != nil {
		t.Fatal(err)
	}

	turns, d := readAll(t, path, Cursor{}, Options{})

	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}
	if d.Cursor().Offset != int64(len(complete)) {
		t.Fatalf("cursor must stop before the partial line: got %d, want %d", d.Cursor().Offset, len(complete))
	}
	if d.Skipped() != 0 {
		t.Fatalf("partial line must not count as malformed")
	}
}

func TestTurns_SnapshotLength(t *testing.T) {
	path := writeTranscript(t, userLine("present before the read opened"))

	d, err := Open(path, Cursor{}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	fmt.Fprintln(f, userLine("appended while reading"))
	f.Close()

	var turns []Turn
	for turn := range d.Turns() {
		turns = append(turns, turn)
	}

	if len(turns) != 1 {
		t.Fatalf("read must stop at the snapshot length, got %d turns", len(turns))
	}
}

func TestTurns_SingleUse(t *testing.T) {
	path := writeTranscript(t, userLine("only one turn in here"))

	d, err := Open(path, Cursor{}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	count := 0
	for range d.Turns() {
		count++
	}
	for range d.Turns() {
		count++
	}

	if count != 1 {
		t.Fatalf("second iteration must yield nothing, total %d", count)
	}
}

func TestTurns_CompactionSummary(t *testing.T) {
	path := writeTranscript(t,
		userLine("we decided to keep the v1 API stable"),
		boundaryLine,
		userLine("This session is being continued from a previous conversation that ran out of context."),
		assistantLine("Continuing with the migration."),
	)

	turns, d := readAll(t, path, Cursor{}, Options{})

	if !strings.Contains(d.CompactionSummary(), "continued from a previous conversation") {
		t.Fatalf("summary not captured: %q", d.CompactionSummary())
	}
	for _, turn := range turns {
		if strings.Contains(turn.Content, "continued from a previous conversation") {
			t.Fatal("compaction summary must not be emitted as a turn")
		}
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
}

func TestTurns_SummaryPhraseOutsideBoundaryIsATurn(t *testing.T) {
	path := writeTranscript(t, userLine("this was continued from a previous conversation, right?"))

	turns, d := readAll(t, path, Cursor{}, Options{})

	if d.CompactionSummary() != "" {
		t.Fatalf("no boundary, no summary; got %q", d.CompactionSummary())
	}
	if len(turns) != 1 {
		t.Fatalf("expected the message as a regular turn, got %d", len(turns))
	}
}

func TestTurns_CompactionSummaryAfterCursor(t *testing.T) {
	path := writeTranscript(t,
		userLine("we decided to keep the v1 API stable"),
		boundaryLine,
	)

	_, first := readAll(t, path, Cursor{}, Options{})
	cursor := first.Cursor()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	fmt.Fprintln(f, userLine("This session is being continued from a previous conversation that ran out of context."))
	fmt.Fprintln(f, assistantLine("Continuing with the migration."))
	fmt.Fprintln(f, userLine("was it continued from a previous conversation?"))
	f.Close()

	turns, d := readAll(t, path, cursor, Options{})

	if !strings.HasPrefix(d.CompactionSummary(), "This session is being continued") {
		t.Fatalf("summary at the cursor not captured: %q", d.CompactionSummary())
	}
	if len(turns) != 2 || turns[0].Role != RoleAssistant || turns[1].Role != RoleUser {
		t.Fatalf("only the first user entry may be taken as the summary: %+v", turns)
	}
}

func TestTurns_TruncatesLongTurns(t *testing.T) {
	long := strings.Repeat("é", 50)
	path := writeTranscript(t, userLine(long))

	turns, _ := readAll(t, path, Cursor{}, Options{MaxTurnChars: 20})

	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}
	want := strings.Repeat("é", 20) + "\n[...truncated...]"
	if turns[0].Content != want {
		t.Fatalf("truncated content: got %q", turns[0].Content)
	}
}

func TestOpen_CursorBeyondEOFRewinds(t *testing.T) {
	path := writeTranscript(t, userLine("the transcript was replaced"))

	turns, d := readAll(t, path, Cursor{Offset: 1 << 20, Line: 500}, Options{})

	if !d.Rewound() {
		t.Fatal("expected Rewound")
	}
	if len(turns) != 1 || turns[0].Ordinal != 0 {
		t.Fatalf("expected a full re-read from zero, got %+v", turns)
	}
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.jsonl"), Cursor{}, Options{})
	if !errors.Is(err, ErrUnreadable) {
		t.Fatalf("expected ErrUnreadable, got %v", err)
	}
}

func TestFormat(t *testing.T) {
	turns := []Turn{
		{Role: RoleUser, Content: "do X"},
		{Role: RoleAssistant, Content: "did X"},
	}

	got := Format(turns, 0)
	want := "[user]: do X\n\n[assistant]: did X"
	if got != want {
		t.Fatalf("Format: got %q, want %q", got, want)
	}

	tail := Format(turns, 5)
	if tail != "did X" {
		t.Fatalf("Format keeps the most recent text, got %q", tail)
	}
}
