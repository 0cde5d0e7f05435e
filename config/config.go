package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// SandboxConfig holds the sandbox environment defaults. A session inherits
// these values at creation time; only the network posture can be overridden,
// and only by the first request of a session.
type SandboxConfig struct {
	Backend            string  `mapstructure:"backend"`
	Image              string  `mapstructure:"image"`
	WorkDir            string  `mapstructure:"work_dir"`
	MemoryMB           int     `mapstructure:"memory_mb"`
	CPULimit           float64 `mapstructure:"cpu_limit"`
	TimeoutSec         int     `mapstructure:"timeout_sec"`
	InstallTimeoutSec  int     `mapstructure:"install_timeout_sec"`
	NetworkEnabled     bool    `mapstructure:"network_enabled"`
	EnableLocalBackend bool    `mapstructure:"enable_local_backend"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// New loads and validates the application configuration
func New() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set default values
	viper.SetDefault("server.transport", "stdio")
	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("sandbox.backend", "docker")
	viper.SetDefault("sandbox.image", "python:3.12-slim")
	viper.SetDefault("sandbox.work_dir", "/workspace")
	viper.SetDefault("sandbox.memory_mb", 512)
	viper.SetDefault("sandbox.cpu_limit", 1.0)
	viper.SetDefault("sandbox.timeout_sec", 30)
	viper.SetDefault("sandbox.install_timeout_sec", 120)
	viper.SetDefault("sandbox.network_enabled", false)
	viper.SetDefault("sandbox.enable_local_backend", false)
	viper.SetDefault("logging.mode", "production")
	viper.SetDefault("logging.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	if c.Sandbox.Image == "" {
		return fmt.Errorf("sandbox.image must not be empty")
	}

	if c.Sandbox.WorkDir == "" {
		return fmt.Errorf("sandbox.work_dir must not be empty")
	}

	if c.Sandbox.MemoryMB <= 0 {
		return fmt.Errorf("sandbox.memory_mb must be positive, got: %d", c.Sandbox.MemoryMB)
	}

	if c.Sandbox.CPULimit <= 0 {
		return fmt.Errorf("sandbox.cpu_limit must be positive, got: %g", c.Sandbox.CPULimit)
	}

	if c.Sandbox.TimeoutSec <= 0 {
		return fmt.Errorf("sandbox.timeout_sec must be positive, got: %d", c.Sandbox.TimeoutSec)
	}

	if c.Sandbox.InstallTimeoutSec <= 0 {
		return fmt.Errorf("sandbox.install_timeout_sec must be positive, got: %d", c.Sandbox.InstallTimeoutSec)
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	supportedBackends := map[string]bool{
		"docker": true,
		"podman": true,
		"local":  c.Sandbox.EnableLocalBackend, // local only enabled if specifically allowed
	}

	if !supportedBackends[c.Sandbox.Backend] {
		return fmt.Errorf("unsupported sandbox.backend: %s", c.Sandbox.Backend)
	}

	return nil
}

// GetTimeout returns the default execution timeout as a duration
func (c *Config) GetTimeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutSec) * time.Second
}

// GetInstallTimeout returns the package installation timeout as a duration.
// This is an independent budget, never derived from a request's timeout.
func (c *Config) GetInstallTimeout() time.Duration {
	return time.Duration(c.Sandbox.InstallTimeoutSec) * time.Second
}
