// Package config loads the process configuration from a TOML file.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config is the full process configuration.
type Config struct {
	API       APIConfig       `toml:"api"`
	Storage   StorageConfig   `toml:"storage"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr is the listen address in host:port form.
func (a APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// StorageConfig selects where snapshots live. Driver "file" keeps JSON
// snapshots under Dir; "postgres" stores them in the database at DSN.
type StorageConfig struct {
	Driver string `toml:"driver"`
	Dir    string `toml:"dir"`
	DSN    string `toml:"dsn"`
}

// TelemetryConfig configures trace export.
type TelemetryConfig struct {
	Enabled      bool   `toml:"enabled"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Storage: StorageConfig{
			Driver: "file",
			Dir:    "data",
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4318",
		},
	}
}

// Load reads the TOML file at path over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if cfg.Storage.Driver != "file" && cfg.Storage.Driver != "postgres" {
		return Config{}, fmt.Errorf("load config %s: unknown storage driver %q", path, cfg.Storage.Driver)
	}
	return cfg, nil
}
