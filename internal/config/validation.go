package config

import (
	"fmt"
	"slices"
)

// validSSLModes are the sslmode values accepted by libpq-compatible drivers.
var validSSLModes = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// PostgreSQL endpoint
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: must be one of %v, got %q", ErrInvalidPostgresSSLMode, validSSLModes, c.PostgresSSLMode)
	}

	if c.PostgresConnectTimeout < 1 || c.PostgresConnectTimeout > 300 {
		return fmt.Errorf("%w: must be between 1 and 300 seconds, got %d", ErrInvalidConnectTimeout, c.PostgresConnectTimeout)
	}

	// Pool bounds: min must not exceed max, max must be positive and sane
	if c.PoolMinConns < 0 {
		return fmt.Errorf("%w: pool_min_conns must be non-negative, got %d", ErrInvalidPoolSize, c.PoolMinConns)
	}

	if c.PoolMaxConns < 1 || c.PoolMaxConns > 1000 {
		return fmt.Errorf("%w: pool_max_conns must be between 1 and 1000, got %d", ErrInvalidPoolSize, c.PoolMaxConns)
	}

	if c.PoolMinConns > c.PoolMaxConns {
		return fmt.Errorf("%w: pool_min_conns (%d) exceeds pool_max_conns (%d)",
			ErrInvalidPoolSize, c.PoolMinConns, c.PoolMaxConns)
	}

	// HTTP server
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidServerPort, c.ServerPort)
	}

	return nil
}
