package hook

import (
	"errors"
	"strings"
	"testing"
)

func TestRead(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		want     Input
		wantErr  bool
		complete bool
	}{
		{
			name:     "compact session start",
			input:    `{"session_id":" abc ","transcript_path":"/p/abc.jsonl","hook_event_name":"SessionStart","source":"compact","extra":1}`,
			want:     Input{SessionID: "abc", TranscriptPath: "/p/abc.jsonl", HookEventName: "SessionStart", Source: "compact"},
			complete: true,
		},
		{
			name:  "missing transcript",
			input: `{"session_id":"abc"}`,
			want:  Input{SessionID: "abc"},
		},
		{
			name:  "empty stream",
			input: "  \n",
		},
		{
			name:    "malformed",
			input:   `{"session_id":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(strings.NewReader(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
			if err := got.Validate(); (err == nil) != tt.complete {
				t.Errorf("Validate: got %v", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	if err := (Input{SessionID: "a"}).Validate(); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
	if err := (Input{SessionID: "a", TranscriptPath: "/t"}).Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestFromCompaction(t *testing.T) {
	tests := []struct {
		source string
		want   bool
	}{
		{"compact", true},
		{"", true},
		{"startup", false},
		{"resume", false},
		{"clear", false},
	}

	for _, tt := range tests {
		if got := (Input{Source: tt.source}).FromCompaction(); got != tt.want {
			t.Errorf("source %q: got %v, want %v", tt.source, got, tt.want)
		}
	}
}
