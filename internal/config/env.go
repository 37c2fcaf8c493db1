package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Environment overrides read by the serve command.
const (
	EnvAddr        = "SPRINTWATCH_ADDR"
	EnvDB          = "SPRINTWATCH_DB"
	EnvCredentials = "SPRINTWATCH_CREDENTIALS"
	EnvSecret      = "SPRINTWATCH_JWT_SECRET"
	EnvTokenTTL    = "SPRINTWATCH_TOKEN_TTL"
)

// LoadDotEnv loads the given .env files (or ./.env) into the process
// environment. Missing files are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// EnvOr returns the variable's value or def when unset or empty.
func EnvOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvDuration parses the variable as a duration, falling back to def.
func EnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
