package status

import (
	"errors"
	"os"
	"testing"
	"time"
)

type fakeOwner struct {
	session string
	held    bool
}

func (o fakeOwner) SessionID() string { return o.session }
func (o fakeOwner) Held() bool        { return o.held }

func newTestRecorder(t *testing.T, now time.Time) *Recorder {
	t.Helper()
	r := NewRecorder(t.TempDir(), 15*time.Minute)
	r.now = func() time.Time { return now }
	return r
}

func TestRecorder_WriteRead(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r := newTestRecorder(t, now)

	rec := Record{Phase: PhasePass1, Step: 1, Total: 2, SessionID: "S1"}
	if err := r.Write(fakeOwner{session: "S1", held: true}, rec); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := r.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Phase != PhasePass1 || got.Step != 1 || got.Total != 2 || got.SessionID != "S1" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if !got.UpdatedAt.Equal(now) {
		t.Fatalf("UpdatedAt: got %v, want %v", got.UpdatedAt, now)
	}
}

func TestRecorder_WriteRequiresOwner(t *testing.T) {
	r := newTestRecorder(t, time.Now())

	tests := []struct {
		name  string
		owner Owner
	}{
		{name: "nil owner", owner: nil},
		{name: "released claim", owner: fakeOwner{session: "S1", held: false}},
		{name: "other session", owner: fakeOwner{session: "S2", held: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Write(tt.owner, Record{Phase: PhaseDone, SessionID: "S1"})
			if !errors.Is(err, ErrNotOwner) {
				t.Fatalf("expected ErrNotOwner, got %v", err)
			}
		})
	}

	if _, err := os.Stat(r.Path); !os.IsNotExist(err) {
		t.Fatal("rejected writes must not create the record")
	}
}

func TestRecorder_ReadEmptyAndStale(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r := newTestRecorder(t, now)

	got, err := r.Read()
	if err != nil || !got.IsEmpty() {
		t.Fatalf("missing file: got %+v, %v", got, err)
	}

	if err := os.WriteFile(r.Path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err = r.Read()
	if err != nil || !got.IsEmpty() {
		t.Fatalf("corrupt file: got %+v, %v", got, err)
	}

	if err := r.Write(fakeOwner{session: "S1", held: true}, Record{Phase: PhaseDone, SessionID: "S1"}); err != nil {
		t.Fatal(err)
	}
	r.now = func() time.Time { return now.Add(16 * time.Minute) }

	got, err = r.Read()
	if err != nil || !got.IsEmpty() {
		t.Fatalf("stale record: got %+v, %v", got, err)
	}
}

func TestRecorder_ReadFor(t *testing.T) {
	r := newTestRecorder(t, time.Now())

	if err := r.Write(fakeOwner{session: "S1", held: true}, Record{Phase: PhasePass2, Step: 2, Total: 2, SessionID: "S1"}); err != nil {
		t.Fatal(err)
	}

	got, err := r.ReadFor("S2")
	if err != nil || !got.IsEmpty() {
		t.Fatalf("other session should read as empty, got %+v, %v", got, err)
	}

	got, err = r.ReadFor("S1")
	if err != nil || got.Phase != PhasePass2 {
		t.Fatalf("own session: got %+v, %v", got, err)
	}

	got, err = r.ReadFor("")
	if err != nil || got.SessionID != "S1" {
		t.Fatalf("empty filter returns any session, got %+v, %v", got, err)
	}
}

func TestRecord_Label(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{name: "empty", rec: Empty, want: ""},
		{name: "pass1 single", rec: Record{Phase: PhasePass1, Step: 1, Total: 1}, want: "HANDOVER extracting (1/1)"},
		{name: "pass1 of two", rec: Record{Phase: PhasePass1, Step: 1, Total: 2}, want: "HANDOVER extracting (1/2)"},
		{name: "pass2", rec: Record{Phase: PhasePass2, Step: 2, Total: 2}, want: "HANDOVER merging (2/2)"},
		{name: "no progress", rec: Record{Phase: PhasePass1}, want: "HANDOVER extracting"},
		{name: "error", rec: Record{Phase: PhaseError}, want: "HANDOVER failed"},
		{name: "recent done", rec: Record{Phase: PhaseDone, UpdatedAt: now.Add(-30 * time.Second)}, want: "HANDOVER ready"},
		{name: "old done", rec: Record{Phase: PhaseDone, UpdatedAt: now.Add(-2 * time.Minute)}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.Label(now, time.Minute); got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPhase_Active(t *testing.T) {
	if !PhasePass1.Active() || !PhasePass2.Active() {
		t.Error("pass phases should be active")
	}
	if PhaseDone.Active() || PhaseError.Active() {
		t.Error("terminal phases should not be active")
	}
}
