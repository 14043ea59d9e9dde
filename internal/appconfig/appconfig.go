// Package appconfig loads process-wide settings: API credentials, model
// selection, timeouts, and the checkpoint directory. It is deliberately
// separate from internal/research.Config, which governs how a single Loop
// run behaves; this package governs how the process is wired.
package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds environment-derived process settings.
type AppConfig struct {
	OpenRouterAPIKey string
	BraveAPIKey      string

	CheckpointDir string

	RequestTimeout time.Duration

	Model               string
	ContextWindowTokens int

	Verbose bool
}

// Load reads a .env file if present, then layers environment variables over
// documented defaults.
func Load() *AppConfig {
	_ = godotenv.Load()

	home, _ := os.UserHomeDir()

	return &AppConfig{
		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
		BraveAPIKey:      os.Getenv("BRAVE_API_KEY"),

		CheckpointDir: getEnvOrDefault("DEEPQUERY_CHECKPOINT_DIR", filepath.Join(home, ".deepquery", "checkpoints")),

		RequestTimeout: 5 * time.Minute,

		Model:               getEnvOrDefault("DEEPQUERY_MODEL", "deepseek/deepseek-r1"),
		ContextWindowTokens: 128000,

		Verbose: os.Getenv("DEEPQUERY_VERBOSE") == "true",
	}
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
