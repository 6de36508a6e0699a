// Package config loads the TOML configuration consumed by embedding
// applications and converts its sections into the runtime options of
// the engine and its collaborators.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Engine  EngineConfig  `toml:"engine"`
	Logging LoggingConfig `toml:"logging"`
	Scripts ScriptsConfig `toml:"scripts"`
}

type EngineConfig struct {
	Debug               bool    `toml:"debug"`
	FixedUpdateHz       float64 `toml:"fixed_update_hz"`
	EnableProxyTracking bool    `toml:"enable_proxy_tracking"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type ScriptsConfig struct {
	Dir string `toml:"dir"`
}

// Load reads a TOML file over the defaults. A missing file is an
// error; use Defaults directly when running without one.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Defaults returns the configuration used when no file is given
func Defaults() *Config {
	return &Config{
		Engine: EngineConfig{
			Debug:               false,
			FixedUpdateHz:       60.0,
			EnableProxyTracking: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
