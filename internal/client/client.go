// Package client assembles the chat SDK for one signed-in user: credential
// storage, the authorized transport, shared pollers, chat, unread counts,
// the notification bell and optional push nudges.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/trash2cash/chatsync/internal/config"
	"github.com/trash2cash/chatsync/internal/domain"
	"github.com/trash2cash/chatsync/internal/messaging"
	"github.com/trash2cash/chatsync/internal/repository/credential"
	"github.com/trash2cash/chatsync/internal/repository/preference"
	"github.com/trash2cash/chatsync/internal/services"
	"github.com/trash2cash/chatsync/internal/services/apiclient"
	"github.com/trash2cash/chatsync/internal/services/chat"
	"github.com/trash2cash/chatsync/internal/services/notify"
	"github.com/trash2cash/chatsync/internal/services/poller"
	"github.com/trash2cash/chatsync/internal/services/push"
	"github.com/trash2cash/chatsync/internal/services/tokens"
)

// Options override what New would otherwise build from Config.
type Options struct {
	Config     *config.Config
	Logger     services.Logger
	DB         *gorm.DB        // opened from Config.ClientDBPath when nil
	Chime      notify.Chime    // terminal bell on stderr when nil
	Subscriber push.Subscriber // NATS at Config.NATSURL when nil and the URL is set
	HTTPClient *http.Client    // for tests
}

// Client is the chat SDK for one process.
type Client struct {
	Tokens *tokens.Store
	API    *apiclient.AuthClient
	Chat   *chat.Service
	Unread *notify.Center
	Bell   *notify.Bell
	Prefs  *preference.GormPreferenceRepository

	logger services.Logger
	shared *poller.Shared
	nudger *push.Nudger
	nats   *messaging.NATSClient
	cancel context.CancelFunc

	mu        sync.Mutex
	started   bool
	profile   domain.UserProfile
	signedOut []func()
}

// New builds a client. Nothing polls until Start or Login.
func New(ctx context.Context, opts Options) (*Client, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("client: config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = &services.NoOpLogger{}
	}

	db := opts.DB
	if db == nil {
		var err error
		db, err = gorm.Open(sqlite.Open(cfg.ClientDBPath), &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("client: open local store: %w", err)
		}
	}
	if err := db.AutoMigrate(&domain.Credential{}, &domain.Preference{}); err != nil {
		return nil, fmt.Errorf("client: migrate local store: %w", err)
	}

	raw, err := apiclient.NewClient(&apiclient.Config{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.HTTPTimeout,
		RateLimit: cfg.APIRateLimit,
		RateBurst: cfg.APIRateBurst,
		UserAgent: "chatsync/1.0",
	}, logger)
	if err != nil {
		return nil, err
	}
	if opts.HTTPClient != nil {
		raw.WithHTTPClient(opts.HTTPClient)
	}

	store, err := tokens.NewStore(raw, credential.NewGormCredentialRepository(db), tokens.DefaultConfig(), logger)
	if err != nil {
		return nil, err
	}
	api := apiclient.NewAuthClient(raw, store)

	runCtx, cancel := context.WithCancel(ctx)
	shared := poller.NewShared(runCtx, logger)

	chatCfg := chat.DefaultConfig()
	chatCfg.RoomsInterval = cfg.RoomsPollInterval
	chatCfg.MessagesInterval = cfg.MessagesPollInterval
	chatCfg.TypingInterval = cfg.TypingPollInterval
	chatCfg.TypingDebounce = cfg.TypingDebounce
	chatService, err := chat.NewService(runCtx, api, shared, chatCfg, logger)
	if err != nil {
		cancel()
		return nil, err
	}

	notifyCfg := notify.DefaultConfig()
	notifyCfg.UnreadInterval = cfg.UnreadPollInterval
	notifyCfg.NotificationsInterval = cfg.NotificationsPollInterval
	notifyCfg.SoundEnabled = cfg.SoundEnabledDefault
	chime := opts.Chime
	if chime == nil {
		chime = notify.NewTerminalChime(os.Stderr)
	}
	prefs := preference.NewGormPreferenceRepository(db)
	center, err := notify.NewCenter(api, shared, notifyCfg, chime, prefs, logger)
	if err != nil {
		cancel()
		return nil, err
	}

	c := &Client{
		Tokens: store,
		API:    api,
		Chat:   chatService,
		Unread: center,
		Bell:   notify.NewBell(api, shared, notifyCfg, logger),
		Prefs:  prefs,
		logger: logger,
		shared: shared,
		cancel: cancel,
	}

	sub := opts.Subscriber
	if sub == nil && cfg.NATSURL != "" {
		natsCfg := messaging.DefaultNATSConfig()
		natsCfg.URL = cfg.NATSURL
		natsCfg.Name = "chatsync-client"
		nc, err := messaging.NewNATSClient(natsCfg)
		if err != nil {
			logger.Warn("Push nudges disabled, NATS unreachable", "error", err)
		} else {
			c.nats = nc
			sub = nc
		}
	}
	if sub != nil {
		c.nudger = push.NewNudger(sub, shared, logger)
	}

	store.OnAuthRequired(c.handleSignedOut)
	return c, nil
}

// OnSignedOut registers fn to run when the session ends, either by Logout or
// because the server stopped accepting the credentials.
func (c *Client) OnSignedOut(fn func()) {
	c.mu.Lock()
	c.signedOut = append(c.signedOut, fn)
	c.mu.Unlock()
}

// Login signs in and starts the background services.
func (c *Client) Login(ctx context.Context, username, password string) error {
	if err := c.Tokens.Login(ctx, username, password); err != nil {
		return err
	}
	return c.Start(ctx)
}

// Start resumes a stored session: it learns who the user is, then starts
// unread counting, the bell and push nudges. It fails with an AUTH_REQUIRED
// error when no usable credentials are stored.
func (c *Client) Start(ctx context.Context) error {
	profile, err := c.Chat.Identify(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.started {
		c.profile = profile
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.profile = profile
	c.mu.Unlock()

	c.Unread.Start(ctx)
	c.Bell.Start()
	if c.nudger != nil {
		if err := c.nudger.Attach(profile.ID); err != nil {
			c.logger.Warn("Push nudges unavailable", "user_id", profile.ID, "error", err)
		}
	}
	c.logger.Info("Client started", "user_id", profile.ID)
	return nil
}

// Profile returns the signed-in user, if any.
func (c *Client) Profile() (domain.UserProfile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile, c.started
}

// OpenSession opens a chat screen on the deep-linked room or the most
// recent one. The caller must Close it.
func (c *Client) OpenSession(ctx context.Context, deepLink *int64) (*chat.Session, error) {
	session := chat.NewSession(c.Chat, c.Unread, c.logger)
	if err := session.Open(ctx, deepLink); err != nil {
		session.Close()
		return nil, err
	}
	return session, nil
}

// MessageUser opens (or creates) the private room with userID and returns
// its id.
func (c *Client) MessageUser(ctx context.Context, userID int64) (int64, error) {
	return c.Chat.Directory().GetOrCreate(ctx, userID)
}

// Logout ends the session on the server and locally.
func (c *Client) Logout(ctx context.Context) error {
	err := c.Tokens.Logout(ctx)
	c.handleSignedOut()
	return err
}

func (c *Client) handleSignedOut() {
	c.mu.Lock()
	wasStarted := c.started
	c.started = false
	c.profile = domain.UserProfile{}
	hooks := append([]func(){}, c.signedOut...)
	c.mu.Unlock()

	if !wasStarted {
		return
	}
	c.stopBackground()
	c.logger.Info("Signed out")
	for _, fn := range hooks {
		fn()
	}
}

func (c *Client) stopBackground() {
	if c.nudger != nil {
		c.nudger.Detach()
	}
	c.Bell.Stop()
	c.Unread.Stop()
}

// Close stops every poll and releases the NATS connection.
func (c *Client) Close() {
	c.mu.Lock()
	c.started = false
	c.mu.Unlock()

	c.stopBackground()
	c.shared.Close()
	c.cancel()
	if c.nats != nil {
		c.nats.Close()
	}
}
