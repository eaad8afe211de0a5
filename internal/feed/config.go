package feed

import (
	"fmt"
	"net/http"
	"time"
)

// Config holds feed gateway settings.
type Config struct {
	GatewayURL     string        `yaml:"gateway_url"`     // Base URL of the feed gateway
	RequestTimeout time.Duration `yaml:"request_timeout"` // Per-request HTTP timeout
	PageSize       int           `yaml:"page_size"`       // Items per paging request
	RateLimit      float64       `yaml:"rate_limit"`      // Requests per second against the gateway
	RateBurst      int           `yaml:"rate_burst"`      // Burst allowance for the rate limiter
}

// Validate validates the configuration and sets defaults.
func (c *Config) Validate() error {
	if c.GatewayURL == "" {
		return fmt.Errorf("gateway_url cannot be empty")
	}

	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}

	if c.PageSize == 0 {
		c.PageSize = 100
	}

	if c.PageSize < 1 {
		return fmt.Errorf("page_size must be positive, got %d", c.PageSize)
	}

	if c.RateLimit == 0 {
		c.RateLimit = 10
	}

	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative, got %v", c.RateLimit)
	}

	if c.RateBurst == 0 {
		c.RateBurst = 5
	}

	return nil
}

// HTTPClient returns a configured HTTP client for gateway requests.
func (c *Config) HTTPClient() *http.Client {
	return &http.Client{
		Timeout: c.RequestTimeout,
	}
}
