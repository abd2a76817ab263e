// File: internal/handlers/respond.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/trash2cash/chatsync/internal/middleware"
	"github.com/trash2cash/chatsync/internal/services"
)

const maxBodyBytes = 64 << 10

// writeJSON is a helper for sending JSON responses.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError is a helper for sending JSON error responses.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps service errors onto status codes. Unknown errors
// are logged and reported as 500 without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		writeError(w, strings.TrimPrefix(err.Error(), services.ErrInvalidInput.Error()+": "), http.StatusBadRequest)
	case errors.Is(err, services.ErrChatroomNotFound):
		writeError(w, "Chatroom not found", http.StatusNotFound)
	case errors.Is(err, services.ErrUserNotFound):
		writeError(w, "User not found", http.StatusNotFound)
	case errors.Is(err, services.ErrNotificationNotFound):
		writeError(w, "Notification not found", http.StatusNotFound)
	default:
		log.Printf("[Handler] %s failed (request %s): %v", op, middleware.RequestIDFromContext(r.Context()), err)
		writeError(w, "Could not complete the request", http.StatusInternalServerError)
	}
}

// decodeJSON reads a bounded JSON body into v. An empty body leaves v as is.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, "Invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

// currentUser returns the user placed in the context by the bearer middleware.
func currentUser(w http.ResponseWriter, r *http.Request) (uint, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
	}
	return userID, ok
}

// pathID parses the {id} route variable.
func pathID(w http.ResponseWriter, r *http.Request, what string) (uint, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil || id == 0 {
		writeError(w, fmt.Sprintf("Invalid %s ID", what), http.StatusBadRequest)
		return 0, false
	}
	return uint(id), true
}

// flexID accepts an ID sent either as a JSON number or a numeric string.
type flexID uint

func (f *flexID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid id %q", s)
	}
	*f = flexID(n)
	return nil
}
