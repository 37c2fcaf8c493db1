// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Store  StoreConfig  `toml:"store"`
	Auth   AuthConfig   `toml:"auth"`
	Server ServerConfig `toml:"server"`
}

// StoreConfig maps database settings.
type StoreConfig struct {
	Path      *string `toml:"path"`
	MustExist *bool   `toml:"must-exist"`
}

// AuthConfig maps credential settings.
type AuthConfig struct {
	Credentials *string `toml:"credentials"`
}

// ServerConfig maps HTTP API settings.
type ServerConfig struct {
	Addr     *string `toml:"addr"`
	Secret   *string `toml:"secret"`
	Issuer   *string `toml:"issuer"`
	TokenTTL *string `toml:"token-ttl"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
