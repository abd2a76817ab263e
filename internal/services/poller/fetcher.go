// Package poller is the polling primitive every chat cache refreshes through.
//
// Runs of one Handle never overlap: a tick that fires while the previous run
// is still in flight is skipped rather than queued, so at most one request per
// resource is outstanding. Results may therefore be up to one interval staler
// than with overlapping ticks, in exchange for never applying an older
// response over a newer one from the same loop.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/trash2cash/chatsync/internal/metrics"
)

// Func is one poll. A returned error is logged and counted, never propagated:
// the next tick is the retry.
type Func func(ctx context.Context) error

type Option func(*Handle)

// WithName labels the poll in logs and metrics.
func WithName(name string) Option {
	return func(h *Handle) { h.name = name }
}

func WithLogger(logger Logger) Option {
	return func(h *Handle) { h.logger = logger }
}

// Handle controls one running poll loop.
type Handle struct {
	name     string
	interval time.Duration
	fn       Func
	logger   Logger

	ctx     context.Context
	cancel  context.CancelFunc
	trigger chan struct{}
	done    chan struct{}

	mu       sync.Mutex
	stopped  bool
	finished time.Time
}

// Start runs fn immediately and then every interval until Stop is called or
// ctx ends. Each run receives a context that Stop cancels.
func Start(ctx context.Context, interval time.Duration, fn Func, opts ...Option) *Handle {
	if interval <= 0 {
		panic(fmt.Sprintf("poller: non-positive interval %v", interval))
	}
	loopCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		name:     "poll",
		interval: interval,
		fn:       fn,
		logger:   nopLogger{},
		ctx:      loopCtx,
		cancel:   cancel,
		trigger:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	go h.loop()
	return h
}

// Stop ends the loop. Once it returns no new run begins; a run already past
// its start sees its context cancelled but is not waited for. Safe to call
// more than once and from inside the poll function.
func (h *Handle) Stop() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	h.cancel()
}

// Trigger asks for an immediate run. Requests made while one is already
// pending collapse into one.
func (h *Handle) Trigger() {
	select {
	case h.trigger <- struct{}{}:
	default:
	}
}

// Wait blocks until the loop goroutine has exited.
func (h *Handle) Wait() {
	<-h.done
}

// Done is closed when the loop goroutine exits.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (h *Handle) Name() string { return h.name }

func (h *Handle) loop() {
	defer close(h.done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.run()
	for {
		select {
		case <-h.ctx.Done():
			return
		case tick := <-ticker.C:
			// a tick buffered while the last run was in flight
			if tick.Before(h.lastFinished()) {
				metrics.PollSkippedTotal.WithLabelValues(h.name).Inc()
				continue
			}
			h.run()
		case <-h.trigger:
			h.run()
		}
	}
}

func (h *Handle) lastFinished() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.finished
}

func (h *Handle) run() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	metrics.PollTicksTotal.WithLabelValues(h.name).Inc()
	if err := h.call(); err != nil && h.ctx.Err() == nil {
		metrics.PollErrorsTotal.WithLabelValues(h.name).Inc()
		h.logger.Warn("Background poll failed", "poll", h.name, "error", err)
	}

	h.mu.Lock()
	h.finished = time.Now()
	h.mu.Unlock()
}

func (h *Handle) call() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("poll %s panicked: %v", h.name, r)
		}
	}()
	return h.fn(h.ctx)
}
