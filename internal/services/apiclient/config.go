package apiclient

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	BaseURL   string        // e.g. https://trash2cash.example/api
	Timeout   time.Duration // per-request timeout
	RateLimit float64       // sustained requests per second across all pollers, 0 disables
	RateBurst int
	UserAgent string
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url %q is not an absolute URL", c.BaseURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative")
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return fmt.Errorf("rate_burst must be at least 1 when rate limiting")
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		BaseURL:   "http://localhost:8080/api",
		Timeout:   10 * time.Second,
		RateLimit: 20,
		RateBurst: 10,
		UserAgent: "chatsync/1.0",
	}
}

func (c *Config) endpoint(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
