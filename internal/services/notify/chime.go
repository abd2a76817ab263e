package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// Chime plays the new-message cue.
type Chime interface {
	Play(ctx context.Context) error
}

// ChimeFunc adapts a function to Chime.
type ChimeFunc func(ctx context.Context) error

func (f ChimeFunc) Play(ctx context.Context) error { return f(ctx) }

// Tone is one step of a cue.
type Tone struct {
	Hz       int
	Duration time.Duration
}

// TwoTone is the new-message cue: A5 then C#6.
var TwoTone = []Tone{
	{Hz: 880, Duration: 150 * time.Millisecond},
	{Hz: 1108, Duration: 250 * time.Millisecond},
}

// TerminalChime renders each tone as a terminal bell. Terminals cannot pick a
// pitch, so only the rhythm of the cue survives.
type TerminalChime struct {
	mu    sync.Mutex
	out   io.Writer
	tones []Tone
}

func NewTerminalChime(out io.Writer) *TerminalChime {
	return &TerminalChime{out: out, tones: TwoTone}
}

func (c *TerminalChime) Play(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, tone := range c.tones {
		if _, err := io.WriteString(c.out, "\a"); err != nil {
			return fmt.Errorf("chime tone %d: %w", tone.Hz, err)
		}
		if i == len(c.tones)-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(tone.Duration):
		}
	}
	return nil
}
