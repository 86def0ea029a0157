package cli

import (
	"github.com/erg0nix/handover/internal/config"

	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "handover",
		Short:         "Background handover documents for compacted agent sessions",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to config file")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newTriggerCmd())
	rootCmd.AddCommand(newWorkerCmd())
	rootCmd.AddCommand(newInjectCmd())
	rootCmd.AddCommand(newStatuslineCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newRunsCmd())
	rootCmd.AddCommand(newHooksCmd())

	return rootCmd
}

func loadConfig(path string) (config.Config, error) {
	configPath := path
	if configPath == "" {
		configPath = config.DefaultPath()
	}

	cfg, err := config.LoadOrCreate(configPath)
	if err != nil {
		return cfg, err
	}
	return config.LoadFromEnv(cfg), nil
}
