package poller

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Shared keeps one poll loop per resource key no matter how many views use
// it. The loop starts with the first Acquire and stops when the last holder
// releases.
type Shared struct {
	ctx    context.Context
	logger Logger

	mu   sync.Mutex
	subs map[string]*sharedEntry
}

type sharedEntry struct {
	handle *Handle
	refs   int
}

func NewShared(ctx context.Context, logger Logger) *Shared {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Shared{ctx: ctx, logger: logger, subs: make(map[string]*sharedEntry)}
}

// Acquire returns the loop for key, starting it with interval and fn if none
// is running. Later callers share the existing loop; their interval and fn are
// ignored. The release func is idempotent.
func (s *Shared) Acquire(key string, interval time.Duration, fn Func) (*Handle, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.subs[key]
	if !ok {
		entry = &sharedEntry{
			handle: Start(s.ctx, interval, fn, WithName(metricName(key)), WithLogger(s.logger)),
		}
		s.subs[key] = entry
		s.logger.Debug("Poll started", "key", key, "interval", interval.String())
	}
	entry.refs++

	var once sync.Once
	return entry.handle, func() {
		once.Do(func() { s.release(key, entry) })
	}
}

func (s *Shared) release(key string, entry *sharedEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.refs--
	if entry.refs > 0 {
		return
	}
	entry.handle.Stop()
	if s.subs[key] == entry {
		delete(s.subs, key)
	}
	s.logger.Debug("Poll stopped", "key", key)
}

// Trigger runs key's loop now. It reports false when nothing holds key.
func (s *Shared) Trigger(key string) bool {
	s.mu.Lock()
	entry, ok := s.subs[key]
	s.mu.Unlock()
	if ok {
		entry.handle.Trigger()
	}
	return ok
}

// TriggerPrefix runs every loop whose key starts with prefix and returns how
// many were nudged.
func (s *Shared) TriggerPrefix(prefix string) int {
	s.mu.Lock()
	var handles []*Handle
	for key, entry := range s.subs {
		if strings.HasPrefix(key, prefix) {
			handles = append(handles, entry.handle)
		}
	}
	s.mu.Unlock()

	for _, h := range handles {
		h.Trigger()
	}
	return len(handles)
}

// Refs returns the holder count for key.
func (s *Shared) Refs(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.subs[key]; ok {
		return entry.refs
	}
	return 0
}

// Close stops every loop regardless of holders.
func (s *Shared) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range s.subs {
		entry.handle.Stop()
		delete(s.subs, key)
	}
}

// metricName strips the per-room suffix so metrics labels stay bounded:
// "messages/42" is reported as "messages".
func metricName(key string) string {
	if i := strings.IndexByte(key, '/'); i >= 0 {
		return key[:i]
	}
	return key
}
