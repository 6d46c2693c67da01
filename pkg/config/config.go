// Package config loads the service configuration: a JSON file overlaid with
// environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"

	"github.com/cobblechat/cobblechat/pkg/bridge"
	"github.com/cobblechat/cobblechat/pkg/keepalive"
)

type Config struct {
	Gateway   GatewayConfig   `json:"gateway"`
	Auth      AuthConfig      `json:"auth"`
	Connector ConnectorConfig `json:"connector"`
	Bridges   BridgesConfig   `json:"bridges,omitempty"`
	Keepalive []keepalive.Job `json:"keepalive,omitempty"`
}

// GatewayConfig describes the viewer-facing HTTP/websocket listener.
type GatewayConfig struct {
	Host string `env:"COBBLECHAT_GATEWAY_HOST" json:"host"`
	Port int    `env:"COBBLECHAT_GATEWAY_PORT" json:"port"`
	// AllowedOrigins restricts browser access; empty allows any origin
	// (development default, matching the upstream relay).
	AllowedOrigins []string `env:"COBBLECHAT_GATEWAY_ALLOWED_ORIGINS" json:"allowed_origins,omitempty"`
}

// AuthConfig describes the Microsoft device-code sign-in used before
// connecting to online-mode servers.
type AuthConfig struct {
	ClientID string `env:"COBBLECHAT_AUTH_CLIENT_ID" json:"client_id"`
	CacheDir string `env:"COBBLECHAT_AUTH_CACHE_DIR" json:"cache_dir"`
}

// ConnectorConfig selects and tunes the connection backend.
type ConnectorConfig struct {
	// Backend is the connection implementation: "loopback" (in-process echo,
	// for development) is built in; real protocol backends register under
	// their own names.
	Backend string `env:"COBBLECHAT_CONNECTOR_BACKEND" json:"backend"`
	// AuthMode is "microsoft" or "offline".
	AuthMode string `env:"COBBLECHAT_CONNECTOR_AUTH_MODE" json:"auth_mode"`
	// ConnectTimeoutSeconds bounds a single connect attempt.
	ConnectTimeoutSeconds int `env:"COBBLECHAT_CONNECTOR_CONNECT_TIMEOUT" json:"connect_timeout_seconds"`
}

type BridgesConfig struct {
	Discord  DiscordBridgeConfig  `json:"discord,omitzero"`
	Slack    SlackBridgeConfig    `json:"slack,omitzero"`
	Telegram TelegramBridgeConfig `json:"telegram,omitzero"`
}

type DiscordBridgeConfig struct {
	Enabled bool `env:"COBBLECHAT_BRIDGES_DISCORD_ENABLED" json:"enabled"`
	bridge.DiscordConfig
}

type SlackBridgeConfig struct {
	Enabled bool `env:"COBBLECHAT_BRIDGES_SLACK_ENABLED" json:"enabled"`
	bridge.SlackConfig
}

type TelegramBridgeConfig struct {
	Enabled bool `env:"COBBLECHAT_BRIDGES_TELEGRAM_ENABLED" json:"enabled"`
	bridge.TelegramConfig
}

// DefaultConfig returns the development defaults: loopback connector, local
// listener, token cache under the user config dir.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Gateway: GatewayConfig{
			Host: "127.0.0.1",
			Port: 3500,
		},
		Auth: AuthConfig{
			CacheDir: filepath.Join(home, ".cobblechat", "tokens"),
		},
		Connector: ConnectorConfig{
			Backend:               "loopback",
			AuthMode:              "offline",
			ConnectTimeoutSeconds: 30,
		},
	}
}

// LoadConfig reads the JSON file at path (missing file falls back to
// defaults) and overlays environment variables.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("invalid gateway port %d", c.Gateway.Port)
	}
	switch c.Connector.AuthMode {
	case "microsoft", "offline":
	default:
		return fmt.Errorf("invalid connector auth_mode %q", c.Connector.AuthMode)
	}
	if c.Connector.ConnectTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid connect timeout %d", c.Connector.ConnectTimeoutSeconds)
	}
	return nil
}

// Addr returns the gateway listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Gateway.Host, c.Gateway.Port)
}
