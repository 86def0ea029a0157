package cli

import (
	"log/slog"
	"os"

	"github.com/erg0nix/handover/internal/hook"
	"github.com/erg0nix/handover/internal/launch"

	"github.com/spf13/cobra"
)

func newTriggerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trigger",
		Short: "Start handover generation in the background (SessionStart hook)",
		Long: "Reads the hook payload from stdin and spawns a detached worker for the session.\n" +
			"Always exits successfully so the host is never blocked.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := hook.Read(cmd.InOrStdin())
			if err != nil || in.Validate() != nil {
				return nil
			}
			if !in.FromCompaction() {
				return nil
			}

			app, err := newHookApp(cmd)
			if err != nil {
				slog.Warn("trigger: config unavailable", "error", err)
				return nil
			}

			exe, err := os.Executable()
			if err != nil {
				slog.Warn("trigger: cannot locate executable", "error", err)
				return nil
			}

			pid, err := launch.Detached(launch.Spec{
				Executable: exe,
				Args:       launch.WorkerArgs(in.SessionID, in.TranscriptPath, app.ConfigPath),
				LogPath:    app.WorkerLogPath(),
			})
			if err != nil {
				slog.Warn("trigger: failed to start worker", "session", in.SessionID, "error", err)
				return nil
			}

			slog.Debug("worker started", "session", in.SessionID, "pid", pid)
			return nil
		},
	}
}
