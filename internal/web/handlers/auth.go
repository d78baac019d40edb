package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/atlasops/backoffice/internal/auth"
	"github.com/atlasops/backoffice/internal/web/middleware"
)

// AuthHandler serves admin login, logout, and identity lookup.
type AuthHandler struct {
	auth         *auth.Service
	maxBodyBytes int64
	exposeErrors bool
}

func NewAuthHandler(authService *auth.Service, maxBodyBytes int64, exposeErrors bool) *AuthHandler {
	return &AuthHandler{
		auth:         authService,
		maxBodyBytes: maxBodyBytes,
		exposeErrors: exposeErrors,
	}
}

// HandleLogin exchanges email/password for a bearer token.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, h.maxBodyBytes, &payload) {
		return
	}

	token, user, err := h.auth.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUserInactive):
			respondError(w, http.StatusUnauthorized, "invalid email or password")
		default:
			respondInternal(w, err, h.exposeErrors)
		}
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user": map[string]interface{}{
			"id":    user.PublicID,
			"email": user.Email,
			"name":  user.Name,
			"role":  user.Role,
		},
	})
}

// HandleLogout invalidates the caller's bearer token.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		respondError(w, http.StatusBadRequest, "missing bearer token")
		return
	}

	if err := h.auth.Logout(r.Context(), token); err != nil {
		respondInternal(w, err, h.exposeErrors)
		return
	}
	respondMessage(w, http.StatusOK, "logged out", nil)
}

// HandleMe returns the authenticated admin's identity.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"id":    user.PublicID,
		"email": user.Email,
		"name":  user.Name,
		"role":  user.Role,
	})
}
