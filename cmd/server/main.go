// File: cmd/server/main.go
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/trash2cash/chatsync/internal/auth"
	"github.com/trash2cash/chatsync/internal/config"
	"github.com/trash2cash/chatsync/internal/messaging"
	"github.com/trash2cash/chatsync/internal/presence"
	"github.com/trash2cash/chatsync/internal/server"
	"github.com/trash2cash/chatsync/internal/services"
)

func main() {
	seed := flag.String("seed", "", "comma-separated usernames to create with password \"password123\"")
	flag.Parse()

	cfg := config.Load()
	logger := services.NewLogger("chatsync-server")

	db, err := gorm.Open(sqlite.Open(cfg.ServerDBPath), &gorm.Config{})
	if err != nil {
		log.Fatalf("DB Error: %v", err)
	}
	if err := server.Migrate(db); err != nil {
		log.Fatalf("DB Migration Error: %v", err)
	}

	secret := cfg.JWTSecretKey
	if secret == "" {
		log.Printf("JWT_SECRET_KEY not set; using an insecure development key")
		secret = "chatsync-development-secret"
	}
	issuer, err := auth.NewTokenIssuer([]byte(secret), cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize token issuer: %v", err)
	}

	deps := server.Deps{
		DB:            db,
		Issuer:        issuer,
		Logger:        logger,
		ExposeMetrics: true,
	}

	// --- Typing presence ---
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatalf("FATAL: Redis unreachable at %s: %v", cfg.RedisAddr, err)
		}
		defer rdb.Close()
		deps.Typing = presence.NewRedisStore(rdb, presence.DefaultTTL)
		log.Printf("Typing presence stored in Redis at %s", cfg.RedisAddr)
	}

	// --- Change events ---
	if cfg.NATSURL != "" {
		natsCfg := messaging.DefaultNATSConfig()
		natsCfg.URL = cfg.NATSURL
		natsCfg.Name = "chatsync-server"
		nc, err := messaging.NewNATSClient(natsCfg)
		if err != nil {
			log.Fatalf("FATAL: Failed to connect to NATS: %v", err)
		}
		defer nc.Close()
		deps.Publisher = nc
	}

	app, err := server.New(deps)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize server: %v", err)
	}
	defer app.Close()

	if *seed != "" {
		seedUsers(app, *seed)
	}

	// --- Server Configuration ---
	port := ":8080"
	if cfg.ServerPort != "" {
		port = ":" + cfg.ServerPort
	}
	srv := &http.Server{
		Addr:              port,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("chatsync reference backend starting on port %s", port)
	log.Printf("API base: http://localhost%s/api", port)

	// --- Start Server in Goroutine ---
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server startup failed: %v", err)
		}
	}()

	// --- Graceful Shutdown ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down server gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
		return
	}
	log.Println("Server stopped gracefully")
}

// seedUsers creates demo accounts. Existing usernames are skipped.
func seedUsers(app *server.Application, list string) {
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		u, err := app.AuthService.Register(context.Background(), name, name+"@example.com", "password123")
		if err != nil {
			log.Printf("Seed: skipped %s: %v", name, err)
			continue
		}
		log.Printf("Seed: created %s (id %d)", u.Username, u.ID)
	}

	profiles, err := app.AuthService.Directory(context.Background())
	if err != nil {
		log.Printf("Seed: could not list users: %v", err)
		return
	}
	for _, p := range profiles {
		log.Printf("Seed: user %d %s", p.ID, p.Username)
	}
}
