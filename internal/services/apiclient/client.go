package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/trash2cash/chatsync/internal/metrics"
)

// Request describes one JSON call against the chat API.
type Request struct {
	Operation string // short name used in errors and metrics, e.g. "chat.send"
	Method    string
	Path      string      // relative to Config.BaseURL
	Body      interface{} // marshalled as JSON when non-nil
	Out       interface{} // decoded from a 2xx JSON body when non-nil
}

// Client performs raw JSON requests. It knows nothing about token refresh;
// AuthClient layers that on top.
type Client struct {
	config  *Config
	http    *http.Client
	limiter *rate.Limiter
	logger  Logger
}

func NewClient(config *Config, logger Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid api client config: %w", err)
	}
	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}
	return &Client{
		config:  config,
		http:    &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(limit, config.RateBurst),
		logger:  logger,
	}, nil
}

// WithHTTPClient swaps the underlying transport, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// Do sends req with token as bearer credential (omitted when empty).
func (c *Client) Do(ctx context.Context, token string, req Request) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return NewNetworkError(req.Operation, 0, "request throttled", err)
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return NewValidationError(req.Operation, "request body cannot be encoded: "+err.Error())
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.config.endpoint(req.Path), body)
	if err != nil {
		return NewNetworkError(req.Operation, 0, "failed to create request", err)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if c.config.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.config.UserAgent)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	metrics.APIRequestDuration.WithLabelValues(req.Operation).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.APIRequestsTotal.WithLabelValues(req.Operation, "0").Inc()
		c.logger.Debug("API request failed", "operation", req.Operation, "request_id", requestID, "error", err)
		return NewNetworkError(req.Operation, 0, "request failed", err)
	}
	defer resp.Body.Close()
	metrics.APIRequestsTotal.WithLabelValues(req.Operation, strconv.Itoa(resp.StatusCode)).Inc()

	return c.handleResponse(req, requestID, resp)
}

func (c *Client) handleResponse(req Request, requestID string, resp *http.Response) error {
	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		return &Error{
			Type:       ErrTypeAuthRequired,
			Operation:  req.Operation,
			StatusCode: resp.StatusCode,
			Message:    "access token rejected",
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Debug("API returned error status",
			"operation", req.Operation, "status", resp.StatusCode, "request_id", requestID)
		return NewNetworkError(req.Operation, resp.StatusCode, errorMessage(responseBody, resp.Status), nil)
	}

	if req.Out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(req.Out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return NewNetworkError(req.Operation, resp.StatusCode, "invalid response body", err)
	}
	return nil
}

// errorMessage pulls {"error": "..."} or {"detail": "..."} out of an error body.
func errorMessage(body []byte, fallback string) string {
	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Detail != "" {
			return payload.Detail
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) < 200 {
		return text
	}
	return fallback
}
