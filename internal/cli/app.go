package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/erg0nix/handover/internal/config"
	"github.com/erg0nix/handover/internal/handover"
	"github.com/erg0nix/handover/internal/status"
	"github.com/spf13/cobra"
)

const workerLogFile = "worker.log"

type App struct {
	Config     config.Config
	ConfigPath string
}

func newApp(cmd *cobra.Command) (*App, error) {
	configPath, _ := cmd.Flags().GetString("config")
	levelOverride, _ := cmd.Flags().GetString("log-level")

	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if levelOverride != "" {
		cfg.LogLevel = levelOverride
	}
	setupLogging(os.Stderr, cfg.LogLevel, slog.LevelDebug)

	return &App{
		Config:     cfg,
		ConfigPath: configPath,
	}, nil
}

// newHookApp is newApp for commands the host runs on every event: logging is
// kept at warn or above so nothing leaks into the host's output.
func newHookApp(cmd *cobra.Command) (*App, error) {
	app, err := newApp(cmd)
	if err != nil {
		return nil, err
	}
	setupLogging(os.Stderr, app.Config.LogLevel, slog.LevelWarn)
	return app, nil
}

func (a *App) Recorder() *status.Recorder {
	return status.NewRecorder(a.Config.StateDir, a.Config.Status.FreshFor())
}

func (a *App) Store() *handover.Store {
	return handover.NewStore(a.Config.StateDir)
}

func (a *App) RunLog() *handover.RunLog {
	return handover.NewRunLog(a.Config.StateDir)
}

func (a *App) WorkerLogPath() string {
	return filepath.Join(a.Config.StateDir, workerLogFile)
}

func setupLogging(w io.Writer, level string, floor slog.Level) {
	lvl := parseLevel(level)
	if lvl < floor {
		lvl = floor
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
}

func parseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
