package launch

import (
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestWorkerArgs(t *testing.T) {
	got := WorkerArgs("abc", "/p/abc.jsonl", "")
	want := []string{"worker", "--session", "abc", "--transcript", "/p/abc.jsonl"}
	if !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	got = WorkerArgs("abc", "/p/abc.jsonl", "/c.toml")
	if !slices.Equal(got[len(got)-2:], []string{"--config", "/c.toml"}) {
		t.Fatalf("config flag missing: %v", got)
	}
}

func waitForContent(t *testing.T, path, want string) string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && strings.Contains(string(data), want) {
			return string(data)
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q in %s", want, path)
	return ""
}

func TestDetached_WritesLogAndReturns(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}

	dir := t.TempDir()
	logPath := filepath.Join(dir, "logs", "worker.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(logPath, []byte("earlier run\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	pid, err := Detached(Spec{
		Executable: "/bin/sh",
		Args:       []string{"-c", "sleep 2; echo child done"},
		LogPath:    logPath,
	})
	if err != nil {
		t.Fatal(err)
	}
	if pid <= 0 {
		t.Fatalf("pid: %d", pid)
	}
	if time.Since(start) > time.Second {
		t.Fatal("Detached must not wait for the child")
	}

	got := waitForContent(t, logPath, "child done")
	if !strings.HasPrefix(got, "earlier run\n") {
		t.Fatalf("log must be appended to: %q", got)
	}
}

func TestDetached_OwnSession(t *testing.T) {
	if _, err := os.Stat("/proc/self/stat"); err != nil {
		t.Skip("needs /proc")
	}

	out := filepath.Join(t.TempDir(), "ids")

	_, err := Detached(Spec{
		Executable: "/bin/sh",
		Args:       []string{"-c", "echo $$ $(cut -d' ' -f6 /proc/$$/stat) > " + out},
	})
	if err != nil {
		t.Fatal(err)
	}

	fields := strings.Fields(waitForContent(t, out, "\n"))
	if len(fields) != 2 {
		t.Fatalf("unexpected output: %v", fields)
	}
	if fields[0] != fields[1] {
		t.Fatalf("child must lead its own session: pid %s, sid %s", fields[0], fields[1])
	}
}

func TestDetached_MissingExecutable(t *testing.T) {
	if _, err := Detached(Spec{Executable: filepath.Join(t.TempDir(), "nope")}); err == nil {
		t.Fatal("expected error")
	}
	if _, err := Detached(Spec{}); err == nil {
		t.Fatal("expected error for empty spec")
	}
}
