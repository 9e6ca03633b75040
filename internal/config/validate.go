package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// Service token secret
	if len(c.Auth.Secret) < 32 {
		errs = append(errs, "AUTH_SECRET must be at least 32 characters")
	}

	// DB password
	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1–65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1–65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1–65535, got %d", c.Redis.Port))
	}

	// Engine tunables
	if c.Engine.StorageTimeout <= 0 {
		errs = append(errs, "ENGINE_STORAGE_TIMEOUT must be positive")
	}
	if c.Engine.AbuseGuardMaxReqs < 1 {
		errs = append(errs, fmt.Sprintf("ENGINE_ABUSE_MAX_REQS must be at least 1, got %d", c.Engine.AbuseGuardMaxReqs))
	}
	if c.Engine.AbuseGuardWindowSec < 1 {
		errs = append(errs, fmt.Sprintf("ENGINE_ABUSE_WINDOW_SEC must be at least 1, got %d", c.Engine.AbuseGuardWindowSec))
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
