// File: cmd/diagnostic/api_diagnostic.go
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// Checks that a deployment's moving parts answer: the API, a login, and the
// optional Redis and NATS backends.
func main() {
	fmt.Println("chatsync diagnostic")

	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	base := strings.TrimRight(getenv("CHATSYNC_API_BASE_URL", "http://localhost:8080/api"), "/")
	client := &http.Client{Timeout: 5 * time.Second}
	failed := false

	health := strings.TrimSuffix(base, "/api") + "/health"
	if resp, err := client.Get(health); err != nil {
		report("health", err)
		failed = true
	} else {
		resp.Body.Close()
		report("health", statusErr(resp.StatusCode))
		failed = failed || resp.StatusCode != http.StatusOK
	}

	if user := os.Getenv("DIAG_USERNAME"); user != "" {
		body, _ := json.Marshal(map[string]string{"username": user, "password": os.Getenv("DIAG_PASSWORD")})
		resp, err := client.Post(base+"/token/", "application/json", bytes.NewReader(body))
		if err != nil {
			report("login", err)
			failed = true
		} else {
			var pair struct {
				Access string `json:"access"`
			}
			json.NewDecoder(resp.Body).Decode(&pair)
			resp.Body.Close()
			err = statusErr(resp.StatusCode)
			if err == nil && pair.Access == "" {
				err = fmt.Errorf("no access token in response")
			}
			report("login", err)
			failed = failed || err != nil
		}
	} else {
		fmt.Println("⏭  login: DIAG_USERNAME not set")
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		rdb.Close()
		report("redis "+addr, err)
		failed = failed || err != nil
	}

	if url := os.Getenv("NATS_URL"); url != "" {
		nc, err := nats.Connect(url, nats.Timeout(3*time.Second))
		if err == nil {
			err = nc.FlushTimeout(3 * time.Second)
			nc.Close()
		}
		report("nats "+url, err)
		failed = failed || err != nil
	}

	if failed {
		os.Exit(1)
	}
}

func report(name string, err error) {
	if err != nil {
		fmt.Printf("❌ %s: %v\n", name, err)
		return
	}
	fmt.Printf("✅ %s\n", name)
}

func statusErr(code int) error {
	if code >= 200 && code < 300 {
		return nil
	}
	return fmt.Errorf("unexpected status %d", code)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
