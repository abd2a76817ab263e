// File: internal/middleware/logger.go
package middleware

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/trash2cash/chatsync/internal/metrics"
)

// LoggingMiddleware logs each request, tags it with an X-Request-ID and
// counts it per route template.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)

		wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r.WithContext(ctx))

		metrics.ServerRequestsTotal.WithLabelValues(routeName(r), r.Method, strconv.Itoa(wrapper.statusCode)).Inc()
		log.Printf(
			"Request: %s %s from %s | Status: %d | Duration: %v | ID: %s",
			r.Method,
			r.RequestURI,
			r.RemoteAddr,
			wrapper.statusCode,
			time.Since(start),
			requestID,
		)
	})
}

// routeName keeps metric labels bounded by using the mux path template.
func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
