// Package config loads server settings from defaults, an optional
// config file and JDWP_MCP_* environment variables, in rising priority.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete server configuration.
type Config struct {
	// Host is the default JDWP target host when jdwp_connect omits one.
	Host string `mapstructure:"host"`
	// Port is the default JDWP target port.
	Port int `mapstructure:"port"`
	// Timeout bounds each debugger operation's protocol round trips.
	Timeout time.Duration `mapstructure:"timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Host:    "localhost",
		Port:    55005,
		Timeout: 15 * time.Second,
	}
}

// Load reads configuration from jdwp-mcp.yaml (working directory or
// ~/.config/jdwp-mcp/) and the environment. A missing config file is
// not an error.
func Load() (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("host", def.Host)
	v.SetDefault("port", def.Port)
	v.SetDefault("timeout", def.Timeout)

	v.SetConfigName("jdwp-mcp")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/jdwp-mcp")

	v.SetEnvPrefix("JDWP_MCP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no session could use.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid timeout %s", c.Timeout)
	}
	return nil
}
