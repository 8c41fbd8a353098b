package testsupport

import (
	"path/filepath"
	"testing"

	"familyboard/internal/config"
)

// TestSecret is the JWT secret used by generated test configs.
const TestSecret = "test-secret-0123456789"

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with a unique temp data directory per
// test. It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Auth.JWTSecret = TestSecret
	cfgVal.Limits.MutationRate = 0

	for _, opt := range opts {
		opt(&cfgVal)
	}
	return &cfgVal
}

// WithMutationLimit enables per-user rate limiting.
func WithMutationLimit(rate float64, burst int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Limits.MutationRate = rate
		cfg.Limits.MutationBurst = burst
	}
}
