// File: internal/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds settings for both the chat client and the reference backend.
type Config struct {
	Environment string

	// Client
	APIBaseURL                string
	ClientDBPath              string
	RoomsPollInterval         time.Duration
	MessagesPollInterval      time.Duration
	TypingPollInterval        time.Duration
	TypingDebounce            time.Duration
	UnreadPollInterval        time.Duration
	NotificationsPollInterval time.Duration
	APIRateLimit              float64
	APIRateBurst              int
	HTTPTimeout               time.Duration
	SoundEnabledDefault       bool
	MetricsAddr               string

	// Reference backend
	ServerPort      string
	JWTSecretKey    string
	ServerDBPath    string
	RedisAddr       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Shared
	NATSURL string
}

// Load reads configuration from environment variables or .env file.
func Load() *Config {
	env := os.Getenv("ENV")
	if strings.ToLower(env) != "production" {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found; continuing with environment variables")
		}
	}

	cfg := &Config{
		Environment: env,

		APIBaseURL:                getEnv("CHATSYNC_API_BASE_URL", "http://localhost:8080/api"),
		ClientDBPath:              getEnv("CHATSYNC_DB_PATH", "chatsync.db"),
		RoomsPollInterval:         getEnvAsDuration("CHAT_ROOMS_POLL_INTERVAL", 3*time.Second),
		MessagesPollInterval:      getEnvAsDuration("CHAT_MESSAGES_POLL_INTERVAL", 3*time.Second),
		TypingPollInterval:        getEnvAsDuration("CHAT_TYPING_POLL_INTERVAL", time.Second),
		TypingDebounce:            getEnvAsDuration("CHAT_TYPING_DEBOUNCE", 2*time.Second),
		UnreadPollInterval:        getEnvAsDuration("UNREAD_POLL_INTERVAL", 2*time.Second),
		NotificationsPollInterval: getEnvAsDuration("NOTIFICATIONS_POLL_INTERVAL", 15*time.Second),
		APIRateLimit:              getEnvAsFloat("API_RATE_LIMIT", 20),
		APIRateBurst:              getEnvAsInt("API_RATE_BURST", 10),
		HTTPTimeout:               getEnvAsDuration("HTTP_TIMEOUT", 10*time.Second),
		SoundEnabledDefault:       getEnvAsBool("SOUND_ENABLED", true),
		MetricsAddr:               getEnv("METRICS_ADDR", ""),

		ServerPort:      getEnv("SERVER_PORT", "8080"),
		JWTSecretKey:    getEnv("JWT_SECRET_KEY", ""),
		ServerDBPath:    getEnv("DB_PATH", "chatsync-server.db"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		AccessTokenTTL:  getEnvAsDuration("ACCESS_TOKEN_TTL", 5*time.Minute),
		RefreshTokenTTL: getEnvAsDuration("REFRESH_TOKEN_TTL", 24*time.Hour),

		NATSURL: getEnv("NATS_URL", ""),
	}

	if strings.ToLower(env) == "production" {
		missing := []string{}
		if cfg.JWTSecretKey == "" {
			missing = append(missing, "JWT_SECRET_KEY")
		}
		if !strings.HasPrefix(cfg.APIBaseURL, "https://") {
			missing = append(missing, "CHATSYNC_API_BASE_URL (https)")
		}
		if len(missing) > 0 {
			log.Fatalf("Missing required production environment variables: %v", missing)
		}
	}

	return cfg
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an env var as an integer, with a fallback.
func getEnvAsInt(key string, defaultValue int) int {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(strValue)
	if err != nil {
		log.Printf("Warning: could not parse env var %s as integer. Using default value.", key)
		return defaultValue
	}
	return intValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		log.Printf("Warning: could not parse env var %s as float. Using default value.", key)
		return defaultValue
	}
	return f
}

func getEnvAsBool(key string, defaultValue bool) bool {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(strValue)
	if err != nil {
		log.Printf("Warning: could not parse env var %s as bool. Using default value.", key)
		return defaultValue
	}
	return b
}

// getEnvAsDuration accepts Go durations ("2s") or plain milliseconds ("2000").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	if ms, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(strValue)
	if err != nil {
		log.Printf("Warning: could not parse env var %s as duration. Using default value.", key)
		return defaultValue
	}
	return d
}
