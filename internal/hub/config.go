package hub

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
	Clients  ClientsConfig  `mapstructure:"clients"`
	UPS      UPSConfig      `mapstructure:"ups"`
}

type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig lists accepted machine tokens as SHA-256 hex hashes, so the
// config file never holds a token in the clear.
type AuthConfig struct {
	TokenHashes []string `mapstructure:"token_hashes"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// ClientConfig is what GET /config advertises to one watchdog client.
type ClientConfig struct {
	ShutdownDelay   int    `mapstructure:"shutdown_delay" json:"shutdown_delay"`
	UPSName         string `mapstructure:"ups_name" json:"ups_name,omitempty"`
	IgnoreSimulated bool   `mapstructure:"ignore_simulated" json:"ignore_simulated"`
}

// ClientsConfig holds the default record plus full per-IP overrides.
type ClientsConfig struct {
	Defaults  ClientConfig            `mapstructure:"defaults"`
	Overrides map[string]ClientConfig `mapstructure:"overrides"`
}

type UPSConfig struct {
	Status       string `mapstructure:"status"`
	Simulated    bool   `mapstructure:"simulated"`
	ScenarioFile string `mapstructure:"scenario_file"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Defaults setzen
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("clients.defaults.shutdown_delay", 15)
	v.SetDefault("ups.status", "OL")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(config.Auth.TokenHashes) == 0 {
		return nil, fmt.Errorf("auth.token_hashes must not be empty")
	}

	return &config, nil
}
