package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAuth()
	c.normalizeBoard()
	c.normalizeClient()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeAuth() {
	if c.Auth.JWTSecret == "" {
		if value, ok := os.LookupEnv("BOARD_JWT_SECRET"); ok {
			c.Auth.JWTSecret = value
		}
	}
	c.Auth.Issuer = strings.TrimSpace(c.Auth.Issuer)
	if c.Auth.TokenTTLHours <= 0 {
		c.Auth.TokenTTLHours = defaultTokenTTLHours
	}
}

func (c *Config) normalizeBoard() {
	stages := make([]string, 0, len(c.Board.DefaultStages))
	seen := make(map[string]struct{}, len(c.Board.DefaultStages))
	for _, name := range c.Board.DefaultStages {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		stages = append(stages, trimmed)
	}
	c.Board.DefaultStages = stages
	if c.Board.PollInterval <= 0 {
		c.Board.PollInterval = defaultPollInterval
	}
}

func (c *Config) normalizeClient() {
	if value, ok := os.LookupEnv("BOARD_SERVER_URL"); ok && strings.TrimSpace(value) != "" {
		c.Client.ServerURL = value
	}
	c.Client.ServerURL = strings.TrimRight(strings.TrimSpace(c.Client.ServerURL), "/")
	if c.Client.ServerURL == "" {
		c.Client.ServerURL = defaultServerURL
	}
	if c.Client.Token == "" {
		if value, ok := os.LookupEnv("BOARD_TOKEN"); ok {
			c.Client.Token = strings.TrimSpace(value)
		}
	}
	if c.Client.RequestTimeout <= 0 {
		c.Client.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
