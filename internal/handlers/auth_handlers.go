// File: internal/handlers/auth_handlers.go
package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/trash2cash/chatsync/internal/middleware"
	"github.com/trash2cash/chatsync/internal/services/user_services"
)

type AuthHandler struct {
	AuthService *user_services.AuthService
}

func NewAuthHandler(service *user_services.AuthService) *AuthHandler {
	return &AuthHandler{AuthService: service}
}

// ObtainToken handles POST /api/token/.
func (h *AuthHandler) ObtainToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	pair, err := h.AuthService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, user_services.ErrInvalidCredentials) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "No active account found with the given credentials"})
			return
		}
		log.Printf("Login error: %v", err)
		writeError(w, "Could not log in", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// RefreshToken handles POST /api/token/refresh/.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Refresh == "" {
		writeError(w, "refresh is required", http.StatusBadRequest)
		return
	}

	access, err := h.AuthService.Refresh(r.Context(), req.Refresh)
	if err != nil {
		if errors.Is(err, user_services.ErrSessionEnded) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired"})
			return
		}
		log.Printf("Refresh error: %v", err)
		writeError(w, "Could not refresh token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": access})
}

// Logout handles DELETE /api/session/ and ends the caller's session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		writeError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if err := h.AuthService.Logout(r.Context(), token); err != nil && !errors.Is(err, user_services.ErrSessionEnded) {
		log.Printf("Logout error: %v", err)
		writeError(w, "Could not log out", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Profile handles GET /api/user-profile/.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	profile, err := h.AuthService.Profile(r.Context(), userID)
	if err != nil {
		writeError(w, "User not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
