package cli

import (
	"fmt"
	"log/slog"

	"github.com/erg0nix/handover/internal/handover"
	"github.com/erg0nix/handover/internal/hook"

	"github.com/spf13/cobra"
)

func newInjectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inject",
		Short: "Point the next prompt at a freshly written handover (UserPromptSubmit hook)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := hook.Read(cmd.InOrStdin())
			if err != nil || in.SessionID == "" {
				return nil
			}

			app, err := newHookApp(cmd)
			if err != nil {
				slog.Warn("inject: config unavailable", "error", err)
				return nil
			}

			path, ok, err := handover.NewInjector(app.Store()).Inject(in.SessionID, in.TranscriptPath)
			if err != nil {
				slog.Warn("inject: failed to consume ready marker", "session", in.SessionID, "error", err)
				return nil
			}
			if !ok {
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), handover.InjectionLine(path))
			return nil
		},
	}
}
