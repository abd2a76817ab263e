package notify

import (
	"fmt"
	"time"
)

type Config struct {
	UnreadInterval        time.Duration // unread count refresh
	NotificationsInterval time.Duration // bell refresh
	SoundEnabled          bool          // used until a stored preference exists
	ChimeTimeout          time.Duration
}

func (c *Config) Validate() error {
	if c.UnreadInterval <= 0 {
		return fmt.Errorf("unread_interval must be positive")
	}
	if c.NotificationsInterval <= 0 {
		return fmt.Errorf("notifications_interval must be positive")
	}
	if c.ChimeTimeout <= 0 {
		return fmt.Errorf("chime_timeout must be positive")
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		UnreadInterval:        2 * time.Second,
		NotificationsInterval: 15 * time.Second,
		SoundEnabled:          true,
		ChimeTimeout:          time.Second,
	}
}
