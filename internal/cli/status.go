package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/erg0nix/handover/internal/status"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the latest handover status record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sessionID, _ := cmd.Flags().GetString("session")

			app, err := newApp(cmd)
			if err != nil {
				return err
			}

			rec, err := app.Recorder().ReadFor(sessionID)
			if err != nil {
				return err
			}

			printStatus(cmd.OutOrStdout(), rec, time.Now())
			return nil
		},
	}

	cmd.Flags().String("session", "", "only show the record for this session")

	return cmd
}

func printStatus(w io.Writer, rec status.Record, now time.Time) {
	if rec.IsEmpty() {
		fmt.Fprintln(w, styleDim.Render("no recent handover activity"))
		return
	}

	phase := string(rec.Phase)
	if rec.Total > 0 {
		phase += fmt.Sprintf(" (%d/%d)", rec.Step, rec.Total)
	}

	fmt.Fprintln(w, styleLabel.Render("session ")+rec.SessionID)
	fmt.Fprintln(w, styleLabel.Render("phase   ")+phaseStyle(rec.Phase).Render(phase))
	fmt.Fprintln(w, styleLabel.Render("updated ")+styleDim.Render(humanAge(now.Sub(rec.UpdatedAt))+" ago"))
	if rec.ArtifactPath != "" {
		fmt.Fprintln(w, styleLabel.Render("file    ")+styleAccent.Render(rec.ArtifactPath))
	}
	if rec.Error != "" {
		fmt.Fprintln(w, styledError(rec.Error, "see the worker log for details"))
	}
}

func humanAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
