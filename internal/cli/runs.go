package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"github.com/erg0nix/handover/internal/handover"

	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent worker runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			all, _ := cmd.Flags().GetBool("all")

			app, err := newApp(cmd)
			if err != nil {
				return err
			}

			records, err := app.RunLog().Recent(0)
			if err != nil {
				return err
			}

			printRuns(cmd.OutOrStdout(), filterRuns(records, all, limit))
			return nil
		},
	}

	cmd.Flags().IntP("limit", "n", 20, "number of runs to show")
	cmd.Flags().Bool("all", false, "include start records")

	return cmd
}

func filterRuns(records []handover.RunRecord, all bool, limit int) []handover.RunRecord {
	var out []handover.RunRecord
	for _, rec := range records {
		if !all && rec.Status == handover.RunStarted {
			continue
		}
		out = append(out, rec)
	}

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func printRuns(w io.Writer, records []handover.RunRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, styleDim.Render("no runs recorded"))
		return
	}

	t := newTable("WHEN", "SESSION", "STATUS", "PASSES", "TURNS", "DURATION", "ERROR")
	for _, rec := range records {
		t.Row(
			rec.Timestamp.Local().Format("2006-01-02 15:04:05"),
			shortID(rec.SessionID),
			runStatusStyle(rec.Status).Render(string(rec.Status)),
			strconv.Itoa(rec.Passes),
			strconv.Itoa(rec.Turns),
			orDash(rec.Duration),
			orDash(truncate(rec.Error, 60)),
		)
	}

	fmt.Fprintln(w, t.Render())
}

func runStatusStyle(s handover.RunStatus) lipgloss.Style {
	switch s {
	case handover.RunDone:
		return styleSuccess
	case handover.RunFailed:
		return styleError
	case handover.RunContended:
		return styleWarning
	default:
		return styleDim
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
