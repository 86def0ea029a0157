package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	glamourstyles "github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/x/term"
	"github.com/muesli/termenv"

	"github.com/erg0nix/handover/internal/handover"

	"github.com/spf13/cobra"
)

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Render a session's handover document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sessionID, _ := cmd.Flags().GetString("session")
			transcriptPath, _ := cmd.Flags().GetString("transcript")
			raw, _ := cmd.Flags().GetBool("raw")

			app, err := newApp(cmd)
			if err != nil {
				return err
			}

			path, err := resolveArtifact(app, sessionID, transcriptPath)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("show: %w", err)
			}

			out := cmd.OutOrStdout()
			if raw || !term.IsTerminal(os.Stdout.Fd()) {
				fmt.Fprint(out, string(data))
				return nil
			}

			renderer := newMarkdownRenderer()
			if renderer == nil {
				fmt.Fprint(out, string(data))
				return nil
			}

			rendered, err := renderer.Render(string(data))
			if err != nil {
				fmt.Fprint(out, string(data))
				return nil
			}

			fmt.Fprintln(out, styleDim.Render(path))
			fmt.Fprint(out, rendered)
			return nil
		},
	}

	cmd.Flags().String("session", "", "session id")
	cmd.Flags().String("transcript", "", "transcript path; the document lives next to it")
	cmd.Flags().Bool("raw", false, "print the Markdown source")

	return cmd
}

// resolveArtifact finds the document from explicit flags, falling back to the
// path recorded by the most recent completed run.
func resolveArtifact(app *App, sessionID, transcriptPath string) (string, error) {
	if sessionID != "" && transcriptPath != "" {
		return handover.ArtifactPath(transcriptPath, sessionID), nil
	}

	recorder := app.Recorder()
	recorder.FreshFor = 0

	rec, err := recorder.ReadFor(sessionID)
	if err != nil {
		return "", err
	}
	if rec.ArtifactPath == "" {
		return "", errors.New(styledError("no handover document recorded", "pass --session and --transcript"))
	}
	return rec.ArtifactPath, nil
}

func markdownStyle() ansi.StyleConfig {
	var style ansi.StyleConfig
	if termenv.HasDarkBackground() {
		style = glamourstyles.DarkStyleConfig
	} else {
		style = glamourstyles.LightStyleConfig
	}

	zero := uint(0)
	style.Document.Margin = &zero
	return style
}

func newMarkdownRenderer() *glamour.TermRenderer {
	width, _, err := term.GetSize(os.Stdout.Fd())
	if err != nil || width <= 0 {
		width = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(markdownStyle()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}
