// Package config loads the client configuration and per-user preference
// record from a TOML file in the data directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// StreamConfig holds frame streaming preferences.
type StreamConfig struct {
	FPS     int     `toml:"fps"`
	Quality float64 `toml:"quality"`
}

// PoolConfig holds connection pool tuning.
type PoolConfig struct {
	MaxSize            int `toml:"max_size"`
	IdleTimeoutMinutes int `toml:"idle_timeout_minutes"`
}

// Config is the client configuration and preference record for one user
// of this device.
type Config struct {
	BackendBase string       `toml:"backend_base"`
	Agent       string       `toml:"agent"`
	UserID      string       `toml:"user_id"`
	Language    string       `toml:"language"`
	DataDir     string       `toml:"data_dir"`
	Stream      StreamConfig `toml:"stream"`
	Pool        PoolConfig   `toml:"pool"`
}

// Default returns the configuration used when no file exists yet.
func Default() Config {
	dataDir := defaultDataDir()
	return Config{
		BackendBase: "http://localhost:8080",
		Agent:       "analyze",
		Language:    "ja",
		DataDir:     dataDir,
		Stream: StreamConfig{
			FPS:     2,
			Quality: 0.6,
		},
		Pool: PoolConfig{
			MaxSize:            5,
			IdleTimeoutMinutes: 30,
		},
	}
}

// LoadOrCreate reads the config at path, writing the defaults there first
// when it does not exist.
func LoadOrCreate(path string) (Config, error) {
	config := Default()

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return config, err
			}
			data, err := toml.Marshal(config)
			if err != nil {
				return config, err
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return config, err
			}
			return config, nil
		}
		return config, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}
	if err := toml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return config, nil
}

// Save writes the config back to path, creating parent directories.
func Save(path string, config Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(defaultDataDir(), "config.toml")
}

// DBPath returns the pool database location under the data directory.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "pool.db")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tea-analyzer"
	}
	return filepath.Join(home, ".tea-analyzer")
}
