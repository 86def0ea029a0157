package cli

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/erg0nix/handover/internal/handover"
	"github.com/erg0nix/handover/internal/summarize"

	"github.com/spf13/cobra"
)

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Generate or refresh the handover document for one session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sessionID, _ := cmd.Flags().GetString("session")
			transcriptPath, _ := cmd.Flags().GetString("transcript")

			app, err := newApp(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			summarizer, err := summarize.New(app.Config.Summarizer, app.Config.Debug)
			if err != nil {
				return err
			}

			executor, err := summarize.NewExecutor(summarizer, app.Config.Summarizer)
			if err != nil {
				return err
			}

			worker := handover.NewWorker(app.Config, executor)

			slog.Info("worker started", "session", sessionID, "pid", os.Getpid())
			outcome, err := worker.Run(ctx, handover.Job{SessionID: sessionID, TranscriptPath: transcriptPath})
			slog.Info("worker finished", "session", sessionID, "outcome", outcome.String())

			return err
		},
	}

	cmd.Flags().String("session", "", "session id")
	cmd.Flags().String("transcript", "", "path to the session transcript (JSONL)")
	_ = cmd.MarkFlagRequired("session")
	_ = cmd.MarkFlagRequired("transcript")

	return cmd
}
