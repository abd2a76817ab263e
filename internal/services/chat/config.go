package chat

import (
	"fmt"
	"time"

	"github.com/trash2cash/chatsync/internal/domain"
)

type Config struct {
	RoomsInterval    time.Duration // chatroom list refresh while a view is open
	MessagesInterval time.Duration // selected room message refresh
	TypingInterval   time.Duration // typing indicator refresh
	TypingDebounce   time.Duration // idle time before "stopped typing" is sent
	TypingTimeout    time.Duration // deadline for each fire-and-forget typing update
	MaxMessageLength int           // in characters
}

func (c *Config) Validate() error {
	if c.RoomsInterval <= 0 || c.MessagesInterval <= 0 || c.TypingInterval <= 0 {
		return fmt.Errorf("poll intervals must be positive")
	}
	if c.TypingDebounce <= 0 {
		return fmt.Errorf("typing_debounce must be positive")
	}
	if c.TypingTimeout <= 0 {
		return fmt.Errorf("typing_timeout must be positive")
	}
	if c.MaxMessageLength < 1 {
		return fmt.Errorf("max_message_length must be at least 1")
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		RoomsInterval:    3 * time.Second,
		MessagesInterval: 3 * time.Second,
		TypingInterval:   time.Second,
		TypingDebounce:   2 * time.Second,
		TypingTimeout:    5 * time.Second,
		MaxMessageLength: domain.MaxMessageLength,
	}
}
