package tokens

import (
	"fmt"
	"time"
)

type Config struct {
	LoginPath   string
	RefreshPath string
	SessionPath string // DELETE on logout
	ProbePath   string // any authenticated GET
	ExpirySkew  time.Duration

	RefreshTimeout time.Duration // bounds the shared refresh request
}

func (c *Config) Validate() error {
	if c.LoginPath == "" || c.RefreshPath == "" {
		return fmt.Errorf("login and refresh paths are required")
	}
	if c.ProbePath == "" {
		return fmt.Errorf("probe path is required")
	}
	if c.RefreshTimeout <= 0 {
		return fmt.Errorf("refresh timeout must be positive")
	}
	if c.ExpirySkew < 0 {
		return fmt.Errorf("expiry skew cannot be negative")
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		LoginPath:   "/token/",
		RefreshPath: "/token/refresh/",
		SessionPath: "/session/",
		ProbePath:   "/user-profile/",
		ExpirySkew:  5 * time.Second,

		RefreshTimeout: 15 * time.Second,
	}
}
