package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBoard(); err != nil {
		return err
	}
	if err := c.validateClient(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// ValidateServer adds the checks only the server needs: it must be able to
// verify bearer tokens.
func (c *Config) ValidateServer() error {
	if c.Auth.JWTSecret == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("auth.jwt_secret is required. Set BOARD_JWT_SECRET env var or edit %s (create with 'board config init')", defaultPath)
	}
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("auth.jwt_secret must be at least 16 characters")
	}
	return nil
}

func (c *Config) validateBoard() error {
	if c.Board.PollInterval <= 0 {
		return errors.New("board.poll_interval must be positive")
	}
	return nil
}

func (c *Config) validateClient() error {
	parsed, err := url.Parse(c.Client.ServerURL)
	if err != nil {
		return fmt.Errorf("client.server_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("client.server_url must use http or https, got %q", c.Client.ServerURL)
	}
	if parsed.Host == "" {
		return fmt.Errorf("client.server_url must include a host, got %q", c.Client.ServerURL)
	}
	return nil
}

func (c *Config) validateLimits() error {
	if c.Limits.MutationRate < 0 {
		return errors.New("limits.mutation_rate must be zero (disabled) or positive")
	}
	if c.Limits.MutationRate > 0 && c.Limits.MutationBurst <= 0 {
		return errors.New("limits.mutation_burst must be positive when limits.mutation_rate is set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
