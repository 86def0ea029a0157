package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	BackendClaude = "claude"
	BackendOpenAI = "openai"
)

type SummarizerConfig struct {
	Backend               string   `toml:"backend"`
	Command               string   `toml:"command"`
	Model                 string   `toml:"model"`
	Args                  []string `toml:"args"`
	Endpoint              string   `toml:"endpoint"`
	APIKeyEnv             string   `toml:"api_key_env"`
	ExtractTimeoutSeconds int      `toml:"extract_timeout_seconds"`
	MergeTimeoutSeconds   int      `toml:"merge_timeout_seconds"`
	MaxTranscriptChars    int      `toml:"max_transcript_chars"`
	MaxSummaryChars       int      `toml:"max_summary_chars"`
	MaxTurnChars          int      `toml:"max_turn_chars"`
}

func (c SummarizerConfig) ExtractTimeout() time.Duration {
	return time.Duration(c.ExtractTimeoutSeconds) * time.Second
}

func (c SummarizerConfig) MergeTimeout() time.Duration {
	return time.Duration(c.MergeTimeoutSeconds) * time.Second
}

type ClaimConfig struct {
	StaleAfterSeconds int `toml:"stale_after_seconds"`
}

func (c ClaimConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterSeconds) * time.Second
}

type StatusConfig struct {
	FreshForSeconds     int `toml:"fresh_for_seconds"`
	ReadyDisplaySeconds int `toml:"ready_display_seconds"`
}

func (c StatusConfig) FreshFor() time.Duration {
	return time.Duration(c.FreshForSeconds) * time.Second
}

func (c StatusConfig) ReadyDisplay() time.Duration {
	return time.Duration(c.ReadyDisplaySeconds) * time.Second
}

type DebugConfig struct {
	LogRequests  bool   `toml:"log_requests"`
	LogResponses bool   `toml:"log_responses"`
	LogDirectory string `toml:"log_directory"`
}

type Config struct {
	StateDir   string           `toml:"state_dir"`
	LogLevel   string           `toml:"log_level"`
	Summarizer SummarizerConfig `toml:"summarizer"`
	Claim      ClaimConfig      `toml:"claim"`
	Status     StatusConfig     `toml:"status"`
	Debug      DebugConfig      `toml:"debug"`
}

func Default() Config {
	stateDir := defaultStateDir()
	return Config{
		StateDir: stateDir,
		LogLevel: "info",
		Summarizer: SummarizerConfig{
			Backend:               BackendClaude,
			Command:               "claude",
			Model:                 "sonnet",
			Args:                  []string{"--allowedTools", "Read"},
			Endpoint:              "http://127.0.0.1:8080",
			APIKeyEnv:             "OPENAI_API_KEY",
			ExtractTimeoutSeconds: 180,
			MergeTimeoutSeconds:   120,
			MaxTranscriptChars:    150_000,
			MaxSummaryChars:       20_000,
			MaxTurnChars:          2000,
		},
		Claim: ClaimConfig{
			StaleAfterSeconds: 600,
		},
		Status: StatusConfig{
			FreshForSeconds:     900,
			ReadyDisplaySeconds: 60,
		},
		Debug: DebugConfig{
			LogRequests:  false,
			LogResponses: false,
			LogDirectory: filepath.Join(stateDir, "debug"),
		},
	}
}

// DefaultPath is the config file location used when --config is not given.
// HANDOVER_STATE_DIR moves it along with the rest of the state.
func DefaultPath() string {
	return filepath.Join(LoadFromEnv(Default()).StateDir, "config.toml")
}

func LoadOrCreate(path string) (Config, error) {
	config := Default()

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return config, fmt.Errorf("create config dir: %w", err)
			}

			configData, err := toml.Marshal(config)
			if err != nil {
				return config, fmt.Errorf("marshal default config: %w", err)
			}

			if err := os.WriteFile(path, configData, 0o644); err != nil {
				return config, fmt.Errorf("write default config: %w", err)
			}

			return config, nil
		}

		return config, err
	}

	configData, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(configData, &config); err != nil {
		return config, fmt.Errorf("parse config %s: %w", path, err)
	}

	return normalize(config)
}

func normalize(config Config) (Config, error) {
	defaults := Default()

	config.StateDir = expandPath(strings.TrimSpace(config.StateDir))
	config.Debug.LogDirectory = expandPath(strings.TrimSpace(config.Debug.LogDirectory))
	config.Summarizer.Backend = strings.ToLower(strings.TrimSpace(config.Summarizer.Backend))
	config.Summarizer.Endpoint = strings.TrimRight(strings.TrimSpace(config.Summarizer.Endpoint), "/")

	if config.StateDir == "" {
		config.StateDir = defaults.StateDir
	}

	if config.Summarizer.Backend == "" {
		config.Summarizer.Backend = BackendClaude
	}

	switch config.Summarizer.Backend {
	case BackendClaude:
		if strings.TrimSpace(config.Summarizer.Command) == "" {
			return config, errors.New("summarizer.command is required for the claude backend")
		}
	case BackendOpenAI:
		if config.Summarizer.Endpoint == "" {
			return config, errors.New("summarizer.endpoint is required for the openai backend")
		}
	default:
		return config, fmt.Errorf("unknown summarizer backend: %q", config.Summarizer.Backend)
	}

	if config.Summarizer.ExtractTimeoutSeconds <= 0 {
		config.Summarizer.ExtractTimeoutSeconds = defaults.Summarizer.ExtractTimeoutSeconds
	}
	if config.Summarizer.MergeTimeoutSeconds <= 0 {
		config.Summarizer.MergeTimeoutSeconds = defaults.Summarizer.MergeTimeoutSeconds
	}
	if config.Claim.StaleAfterSeconds <= 0 {
		config.Claim.StaleAfterSeconds = defaults.Claim.StaleAfterSeconds
	}
	if config.Status.FreshForSeconds <= 0 {
		config.Status.FreshForSeconds = defaults.Status.FreshForSeconds
	}

	return config, nil
}

func defaultStateDir() string {
	homeDir, _ := os.UserHomeDir()

	if homeDir == "" {
		return filepath.Join(".claude", "handover")
	}

	return filepath.Join(homeDir, ".claude", "handover")
}

func expandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		homeDir, _ := os.UserHomeDir()

		if homeDir != "" {
			trimmed := strings.TrimPrefix(path, "~")
			trimmed = strings.TrimPrefix(trimmed, string(os.PathSeparator))

			return filepath.Join(homeDir, trimmed)
		}
	}

	return path
}
