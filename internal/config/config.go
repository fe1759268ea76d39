// Package config resolves the agent-monitor home directory and loads the
// optional config.yaml inside it. Flags win over file values; the file wins
// over defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Defaults applied when config.yaml is absent or a field is unset.
const (
	DefaultAddr             = "127.0.0.1:4483"
	DefaultDBDriver         = "sqlite"
	DefaultHeartbeatSeconds = 30
)

// Config is the daemon configuration stored at <home>/config.yaml.
type Config struct {
	Addr             string `yaml:"addr"`
	APIKey           string `yaml:"api_key"`
	DBDriver         string `yaml:"db_driver"` // "sqlite" or "postgres"
	DBURL            string `yaml:"db_url"`    // postgres DSN when db_driver is postgres
	HeartbeatSeconds int    `yaml:"heartbeat_seconds"`
}

// Load reads <home>/config.yaml. A missing file yields the defaults.
func Load(home string) (Config, error) {
	cfg := Config{
		Addr:             DefaultAddr,
		DBDriver:         DefaultDBDriver,
		HeartbeatSeconds: DefaultHeartbeatSeconds,
	}
	path := filepath.Join(home, "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.DBDriver == "" {
		cfg.DBDriver = DefaultDBDriver
	}
	if cfg.HeartbeatSeconds <= 0 {
		cfg.HeartbeatSeconds = DefaultHeartbeatSeconds
	}
	return cfg, nil
}
