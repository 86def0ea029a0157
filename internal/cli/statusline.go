package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/erg0nix/handover/internal/hook"
	"github.com/erg0nix/handover/internal/status"

	"github.com/spf13/cobra"
)

func newStatuslineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "statusline",
		Short: "Print the handover status for the host status bar",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var sessionID string
			if fromStdin, _ := cmd.Flags().GetBool("stdin"); fromStdin {
				if in, err := hook.Read(cmd.InOrStdin()); err == nil {
					sessionID = in.SessionID
				}
			}

			app, err := newHookApp(cmd)
			if err != nil {
				return nil
			}

			rec, err := app.Recorder().ReadFor(sessionID)
			if err != nil {
				return nil
			}

			printStatusLine(cmd.OutOrStdout(), rec, time.Now(), app.Config.Status.ReadyDisplay())
			return nil
		},
	}

	cmd.Flags().Bool("stdin", false, "read the host payload from stdin and show only the current session")

	return cmd
}

func printStatusLine(w io.Writer, rec status.Record, now time.Time, readyFor time.Duration) {
	label := rec.Label(now, readyFor)
	if label == "" {
		return
	}

	style := statusBarStyles(w)
	fmt.Fprintln(w, style(rec.Phase).Render("📝"+label))
}
