package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

type hookCommand struct {
	Type    string `json:"type"`
	Command string `json:"command"`
}

type hookMatcher struct {
	Matcher string        `json:"matcher,omitempty"`
	Hooks   []hookCommand `json:"hooks"`
}

type hostSettings struct {
	Hooks      map[string][]hookMatcher `json:"hooks"`
	StatusLine hookCommand              `json:"statusLine"`
}

func newHooksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hooks",
		Short: "Print the host settings snippet that wires the hook commands",
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")

			exe, err := os.Executable()
			if err != nil {
				exe = "handover"
			}

			data, err := json.MarshalIndent(buildHostSettings(exe, configPath), "", "  ")
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func buildHostSettings(exe, configPath string) hostSettings {
	command := func(sub string, extra ...string) hookCommand {
		parts := []string{quoteArg(exe)}
		if configPath != "" {
			parts = append(parts, "--config", quoteArg(configPath))
		}
		parts = append(parts, sub)
		parts = append(parts, extra...)
		return hookCommand{Type: "command", Command: strings.Join(parts, " ")}
	}

	return hostSettings{
		Hooks: map[string][]hookMatcher{
			"SessionStart": {{
				Matcher: "compact",
				Hooks:   []hookCommand{command("trigger")},
			}},
			"UserPromptSubmit": {{
				Hooks: []hookCommand{command("inject")},
			}},
		},
		StatusLine: command("statusline", "--stdin"),
	}
}

func quoteArg(s string) string {
	if strings.ContainsAny(s, " \t\"'") {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}
