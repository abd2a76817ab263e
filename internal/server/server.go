// Package server assembles the reference chat backend: storage, services,
// handlers and the route table.
package server

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/trash2cash/chatsync/internal/auth"
	"github.com/trash2cash/chatsync/internal/domain"
	"github.com/trash2cash/chatsync/internal/handlers"
	"github.com/trash2cash/chatsync/internal/metrics"
	"github.com/trash2cash/chatsync/internal/middleware"
	"github.com/trash2cash/chatsync/internal/presence"
	"github.com/trash2cash/chatsync/internal/ratelimit"
	"github.com/trash2cash/chatsync/internal/repository/chat"
	"github.com/trash2cash/chatsync/internal/repository/message"
	"github.com/trash2cash/chatsync/internal/repository/notification"
	"github.com/trash2cash/chatsync/internal/repository/session"
	"github.com/trash2cash/chatsync/internal/repository/user"
	"github.com/trash2cash/chatsync/internal/services"
	"github.com/trash2cash/chatsync/internal/services/user_services"
)

// Deps are the outside resources the backend runs on. Typing defaults to
// an in-memory store; Publisher and the limit configs are optional.
type Deps struct {
	DB            *gorm.DB
	Issuer        *auth.TokenIssuer
	Typing        presence.Store
	Publisher     services.EventPublisher
	Logger        services.Logger
	LoginLimit    *ratelimit.Config
	RefreshLimit  *ratelimit.Config
	ExposeMetrics bool
}

// Application aggregates all services and handlers
type Application struct {
	Router http.Handler

	AuthService         *user_services.AuthService
	ChatService         *services.ChatService
	NotificationService *services.NotificationService

	limiters []*ratelimit.MemoryRateLimiter
}

// Migrate creates or updates the backend tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.User{}, &domain.Session{}, &domain.Room{}, &domain.ChatMessage{}, &domain.Notification{})
}

// New wires repositories, services and routes over deps.
func New(deps Deps) (*Application, error) {
	if deps.DB == nil {
		return nil, errors.New("server: database is required")
	}
	if deps.Issuer == nil {
		return nil, errors.New("server: token issuer is required")
	}
	if deps.Logger == nil {
		deps.Logger = &services.NoOpLogger{}
	}
	if deps.Typing == nil {
		deps.Typing = presence.NewMemoryStore(presence.DefaultTTL)
	}
	if deps.LoginLimit == nil {
		deps.LoginLimit = ratelimit.DefaultLoginConfig()
	}
	if deps.RefreshLimit == nil {
		deps.RefreshLimit = ratelimit.DefaultRefreshConfig()
	}

	// --- Repositories ---
	userRepo := user.NewGormUserRepository(deps.DB)
	sessionRepo := session.NewSessionRepository(deps.DB)
	chatRepo := chat.NewChatRepository(deps.DB)
	messageRepo := message.NewMessageRepository(deps.DB)
	notifyRepo := notification.NewNotificationRepository(deps.DB)

	// --- Services ---
	authService := user_services.NewAuthService(userRepo, sessionRepo, deps.Issuer, deps.Logger)
	chatService, err := services.NewChatService(chatRepo, messageRepo, userRepo, notifyRepo, deps.Typing, deps.Publisher, deps.Logger)
	if err != nil {
		return nil, err
	}
	notificationService := services.NewNotificationService(notifyRepo, deps.Publisher, deps.Logger)

	app := &Application{
		AuthService:         authService,
		ChatService:         chatService,
		NotificationService: notificationService,
	}

	// --- Handlers ---
	authHandler := handlers.NewAuthHandler(authService)
	chatHandler := handlers.NewChatHandler(chatService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)

	// --- Router Setup ---
	r := mux.NewRouter()
	r.Use(middleware.CORS)
	r.Use(middleware.RecoverPanic)
	r.Use(middleware.LoggingMiddleware)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)
	if deps.ExposeMetrics {
		r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()

	// --- Public Routes ---
	loginLimiter := ratelimit.NewMemoryRateLimiter(deps.LoginLimit)
	refreshLimiter := ratelimit.NewMemoryRateLimiter(deps.RefreshLimit)
	app.limiters = append(app.limiters, loginLimiter, refreshLimiter)

	api.Handle("/token/", chain(http.HandlerFunc(authHandler.ObtainToken),
		middleware.RateLimitMiddleware(loginLimiter, "login"),
		middleware.AuthSuccessMiddleware(loginLimiter, "login"),
	)).Methods(http.MethodPost)
	api.Handle("/token/refresh/", chain(http.HandlerFunc(authHandler.RefreshToken),
		middleware.RateLimitMiddleware(refreshLimiter, "refresh"),
	)).Methods(http.MethodPost)

	// --- Protected Routes ---
	protected := api.PathPrefix("/").Subrouter()
	protected.Use(middleware.NewBearerMiddleware(authService))

	protected.HandleFunc("/session/", authHandler.Logout).Methods(http.MethodDelete)
	protected.HandleFunc("/user-profile/", authHandler.Profile).Methods(http.MethodGet)

	protected.HandleFunc("/chat/my-chatrooms/", chatHandler.MyChatrooms).Methods(http.MethodGet)
	protected.HandleFunc("/chat/messages/{id:[0-9]+}/", chatHandler.GetMessages).Methods(http.MethodGet)
	protected.HandleFunc("/chat/send/", chatHandler.SendMessage).Methods(http.MethodPost)
	protected.HandleFunc("/chat/typing/", chatHandler.SetTyping).Methods(http.MethodPost)
	protected.HandleFunc("/chat/typing/{id:[0-9]+}/", chatHandler.GetTyping).Methods(http.MethodGet)
	protected.HandleFunc("/chat/mark-as-read/", chatHandler.MarkAsRead).Methods(http.MethodPost)
	protected.HandleFunc("/chat/chatroom-unread-counts/", chatHandler.UnreadCounts).Methods(http.MethodGet)
	protected.HandleFunc("/chat/get-or-create-chatroom/", chatHandler.GetOrCreateChatroom).Methods(http.MethodPost)

	protected.HandleFunc("/notifications/", notificationHandler.List).Methods(http.MethodGet)
	protected.HandleFunc("/notifications/mark-all-read/", notificationHandler.MarkAllRead).Methods(http.MethodPost)
	protected.HandleFunc("/notifications/{id:[0-9]+}/mark-read/", notificationHandler.MarkRead).Methods(http.MethodPost)

	// --- Custom Error Handlers ---
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Not found"}`))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = w.Write([]byte(`{"error":"Method not allowed"}`))
	})

	app.Router = r
	return app, nil
}

// Close stops background work started by New.
func (a *Application) Close() {
	for _, l := range a.limiters {
		l.Close()
	}
}

// chain applies middlewares so the first one listed runs first.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
