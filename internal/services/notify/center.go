package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/trash2cash/chatsync/internal/domain"
	"github.com/trash2cash/chatsync/internal/metrics"
	"github.com/trash2cash/chatsync/internal/services/apiclient"
	"github.com/trash2cash/chatsync/internal/services/poller"
)

type viewer struct {
	id     uint64
	roomID int64
}

// Center aggregates unread counts for the navigation shell. One Center is
// built per signed-in shell and handed to every screen that needs it.
type Center struct {
	api    apiclient.Doer
	shared *poller.Shared
	config *Config
	chime  Chime
	prefs  Preferences
	logger Logger
	seq    poller.Sequence

	mu       sync.Mutex
	release  func()
	counts   domain.UnreadCounts
	baseline bool
	active   *int64
	sound    bool
	viewers  []viewer // screens showing a room, most recent last
	nextView uint64

	observers poller.Observers[Snapshot]
}

// NewCenter builds a stopped Center. chime and prefs may be nil.
func NewCenter(api apiclient.Doer, shared *poller.Shared, config *Config, chime Chime, prefs Preferences, logger Logger) (*Center, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid notify config: %w", err)
	}
	return &Center{
		api:    api,
		shared: shared,
		config: config,
		chime:  chime,
		prefs:  prefs,
		logger: logger,
		counts: domain.UnreadCounts{},
		sound:  config.SoundEnabled,
	}, nil
}

// Start reads the sound preference and begins polling unread counts.
// Calling Start on a running Center does nothing.
func (c *Center) Start(ctx context.Context) {
	sound := c.config.SoundEnabled
	if c.prefs != nil {
		stored, err := c.prefs.GetBool(ctx, domain.PreferenceSoundEnabled, sound)
		if err != nil {
			c.logger.Warn("Could not read sound preference", "error", err)
		}
		sound = stored
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sound = sound
	if c.release != nil {
		return
	}
	_, c.release = c.shared.Acquire(KeyUnreadCounts, c.config.UnreadInterval, c.poll)
	c.logger.Info("Notification center started", "sound_enabled", sound)
}

// Stop ends polling and forgets all counts and the active room. A poll
// response still in flight is dropped when it lands.
func (c *Center) Stop() {
	c.mu.Lock()
	if c.release != nil {
		c.release()
		c.release = nil
	}
	c.mu.Unlock()

	var snap Snapshot
	c.seq.Apply(c.seq.Next(), func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.counts = domain.UnreadCounts{}
		c.baseline = false
		c.active = nil
		c.viewers = nil
		snap = c.snapshotLocked()
	})

	metrics.UnreadBadge.Set(0)
	c.observers.Emit(snap)
}

// FetchUnreadCounts polls the server once and applies the result. A rise in
// any room other than the active one plays the chime.
func (c *Center) FetchUnreadCounts(ctx context.Context) (domain.UnreadCounts, error) {
	seq := c.seq.Next()

	var out struct {
		UnreadCounts map[string]int `json:"unread_counts"`
	}
	err := c.api.Do(ctx, apiclient.Request{
		Operation: "chat.unread_counts",
		Method:    http.MethodGet,
		Path:      "/chat/chatroom-unread-counts/",
		Out:       &out,
	})
	if err != nil {
		return nil, err
	}
	counts := c.parse(out.UnreadCounts)

	var rose bool
	var snap Snapshot
	applied := c.seq.Apply(seq, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		rose = c.baseline && c.roseLocked(counts)
		c.counts = counts
		c.baseline = true
		snap = c.snapshotLocked()
	})
	if !applied {
		metrics.PollStaleTotal.WithLabelValues(KeyUnreadCounts).Inc()
		return c.Counts(), nil
	}

	metrics.UnreadBadge.Set(float64(snap.Total))
	c.observers.Emit(snap)
	if rose && snap.SoundEnabled {
		c.playChime(ctx)
	}
	return counts.Clone(), nil
}

func (c *Center) parse(raw map[string]int) domain.UnreadCounts {
	counts := make(domain.UnreadCounts, len(raw))
	for key, n := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			c.logger.Debug("Skipping unread count with bad room id", "key", key)
			continue
		}
		if n < 0 {
			n = 0
		}
		counts[id] = n
	}
	return counts
}

func (c *Center) roseLocked(next domain.UnreadCounts) bool {
	for id, n := range next {
		if c.active != nil && *c.active == id {
			continue
		}
		if n > c.counts[id] {
			return true
		}
	}
	return false
}

func (c *Center) playChime(ctx context.Context) {
	if c.chime == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, c.config.ChimeTimeout)
	defer cancel()
	if err := c.chime.Play(ctx); err != nil {
		c.logger.Debug("Could not play notification sound", "error", err)
	}
}

// SetActiveViewingChatroom marks the room on screen, or none for nil. The
// active room never counts toward the badge. It replaces whatever screens
// registered through EnterChatroom.
func (c *Center) SetActiveViewingChatroom(roomID *int64) {
	c.mu.Lock()
	c.viewers = nil
	c.active = copyID(roomID)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
}

// EnterChatroom registers a screen showing roomID and makes it the active
// room. The returned func unregisters it; the active room then falls back to
// the most recently entered room still on screen, or none.
func (c *Center) EnterChatroom(roomID int64) (leave func()) {
	c.mu.Lock()
	c.nextView++
	v := viewer{id: c.nextView, roomID: roomID}
	c.viewers = append(c.viewers, v)
	c.active = copyID(&roomID)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)

	var once sync.Once
	return func() {
		once.Do(func() { c.leave(v.id) })
	}
}

func (c *Center) leave(viewerID uint64) {
	c.mu.Lock()
	found := false
	for i, v := range c.viewers {
		if v.id == viewerID {
			c.viewers = append(c.viewers[:i], c.viewers[i+1:]...)
			found = true
			break
		}
	}
	// Stop or SetActiveViewingChatroom already dropped this screen
	if !found {
		c.mu.Unlock()
		return
	}
	if n := len(c.viewers); n > 0 {
		c.active = copyID(&c.viewers[n-1].roomID)
	} else {
		c.active = nil
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
}

func (c *Center) publish(snap Snapshot) {
	metrics.UnreadBadge.Set(float64(snap.Total))
	c.observers.Emit(snap)
}

// ActiveViewingChatroom returns the room on screen, or nil.
func (c *Center) ActiveViewingChatroom() *int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyID(c.active)
}

// Total is the badge: every unread message outside the active room.
func (c *Center) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalLocked()
}

// Count is the badge for one room, 0 while it is on screen.
func (c *Center) Count(roomID int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil && *c.active == roomID {
		return 0
	}
	return c.counts[roomID]
}

// Counts returns the raw server counts.
func (c *Center) Counts() domain.UnreadCounts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts.Clone()
}

func (c *Center) SoundEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sound
}

// SetSoundEnabled toggles the chime and stores the choice.
func (c *Center) SetSoundEnabled(ctx context.Context, enabled bool) error {
	c.mu.Lock()
	c.sound = enabled
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.observers.Emit(snap)
	if c.prefs == nil {
		return nil
	}
	return c.prefs.SetBool(ctx, domain.PreferenceSoundEnabled, enabled)
}

// Subscribe calls fn with every badge change.
func (c *Center) Subscribe(fn func(Snapshot)) func() {
	return c.observers.Add(fn)
}

// Snapshot returns the current badge state.
func (c *Center) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Center) snapshotLocked() Snapshot {
	return Snapshot{
		Counts:       c.counts.Clone(),
		ActiveRoom:   copyID(c.active),
		Total:        c.totalLocked(),
		SoundEnabled: c.sound,
	}
}

func (c *Center) totalLocked() int {
	total := 0
	for id, n := range c.counts {
		if c.active != nil && *c.active == id {
			continue
		}
		total += n
	}
	return total
}

func (c *Center) poll(ctx context.Context) error {
	_, err := c.FetchUnreadCounts(ctx)
	return err
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
