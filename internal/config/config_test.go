package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "test")
	cfg := Load()

	assert.Equal(t, "http://localhost:8080/api", cfg.APIBaseURL)
	assert.Equal(t, 3*time.Second, cfg.MessagesPollInterval)
	assert.Equal(t, time.Second, cfg.TypingPollInterval)
	assert.Equal(t, 2*time.Second, cfg.TypingDebounce)
	assert.Equal(t, 2*time.Second, cfg.UnreadPollInterval)
	assert.Equal(t, 15*time.Second, cfg.NotificationsPollInterval)
	assert.True(t, cfg.SoundEnabledDefault)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("CHAT_TYPING_DEBOUNCE", "500")
	t.Setenv("UNREAD_POLL_INTERVAL", "5s")
	t.Setenv("SOUND_ENABLED", "false")
	t.Setenv("API_RATE_BURST", "not-a-number")

	cfg := Load()

	assert.Equal(t, 500*time.Millisecond, cfg.TypingDebounce)
	assert.Equal(t, 5*time.Second, cfg.UnreadPollInterval)
	assert.False(t, cfg.SoundEnabledDefault)
	assert.Equal(t, 10, cfg.APIRateBurst)
}
