package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	Env           string
	DatabaseURL   string
	AuthVerifyURL string
	DefaultWager  int64
}

// Load reads .env if present (a missing file is fine) and then the process
// environment.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port:          getenv("PORT", "8080"),
		Env:           getenv("ENV", "development"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		AuthVerifyURL: os.Getenv("AUTH_VERIFY_URL"),
		DefaultWager:  100,
	}
	if raw := os.Getenv("DEFAULT_WAGER"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
			cfg.DefaultWager = n
		}
	}
	return cfg
}

func (c Config) Production() bool { return c.Env == "production" }

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
