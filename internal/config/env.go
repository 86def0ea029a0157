package config

import (
	"os"
	"strconv"
	"strings"
)

// LoadFromEnv applies HANDOVER_* environment overrides on top of cfg.
func LoadFromEnv(cfg Config) Config {
	if v := strings.TrimSpace(os.Getenv("HANDOVER_STATE_DIR")); v != "" {
		cfg.StateDir = expandPath(v)
	}
	if v := strings.TrimSpace(os.Getenv("HANDOVER_LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("HANDOVER_BACKEND")); v != "" {
		cfg.Summarizer.Backend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("HANDOVER_MODEL")); v != "" {
		cfg.Summarizer.Model = v
	}
	if n, ok := envSeconds("HANDOVER_EXTRACT_TIMEOUT_SECONDS"); ok {
		cfg.Summarizer.ExtractTimeoutSeconds = n
	}
	if n, ok := envSeconds("HANDOVER_MERGE_TIMEOUT_SECONDS"); ok {
		cfg.Summarizer.MergeTimeoutSeconds = n
	}
	if os.Getenv("HANDOVER_DEBUG_LOG_REQUESTS") == "1" {
		cfg.Debug.LogRequests = true
	}
	if os.Getenv("HANDOVER_DEBUG_LOG_RESPONSES") == "1" {
		cfg.Debug.LogResponses = true
	}
	return cfg
}

func envSeconds(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
