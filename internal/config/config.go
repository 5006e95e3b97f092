package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config is the process-level configuration. Game-rule timings live in
// session.Config, not here.
type Config struct {
	Addr    string
	WebRoot string
	DevLog  bool
}

// Load reads .env if present, then the environment, falling back to
// defaults.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Addr:    ":8080",
		WebRoot: "web",
	}
	if v := os.Getenv("ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("WEB_ROOT"); v != "" {
		cfg.WebRoot = v
	}
	cfg.DevLog = os.Getenv("DEV_LOG") == "1"
	return cfg
}
