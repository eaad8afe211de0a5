package testutil

import (
	"time"

	"github.com/oeg-upm/telegram-dataset-builder/internal/config"
	"github.com/oeg-upm/telegram-dataset-builder/internal/feed"
)

// NewTestConfig returns a minimal valid config for testing, rooted at dir.
func NewTestConfig(dir string) *config.Config {
	return &config.Config{
		Monitor: config.MonitorConfig{
			Channels:       []string{"testchannel"},
			BatchSize:      10,
			TrackerWindow:  time.Hour,
			TrackerTimer:   time.Minute,
			StalenessLimit: 10 * time.Hour,
			LogLevel:       "error",
		},
		Output: config.OutputConfig{
			Dir: dir,
		},
		State: config.StateConfig{
			Backend: config.StateBackendFile,
		},
		Feed: feed.Config{
			GatewayURL:     "http://localhost:8181",
			RequestTimeout: time.Second,
			PageSize:       100,
			RateLimit:      100,
			RateBurst:      10,
		},
	}
}
