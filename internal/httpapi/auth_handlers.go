package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"kavosh.dev/internal/audit"
	"kavosh.dev/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := a.auth.Login(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		a.handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.login.succeeded", map[string]any{
		"subject": result.Identity.Subject,
		"source":  string(result.Identity.Source),
	})
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: result.AccessToken,
		TokenType:   "bearer",
		ExpiresAt:   result.ExpiresAt,
	})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := a.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		a.handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.user.registered", map[string]any{
		"subject": result.Identity.Subject,
	})
	writeJSON(w, http.StatusCreated, tokenResponse{
		AccessToken: result.AccessToken,
		TokenType:   "bearer",
		ExpiresAt:   result.ExpiresAt,
	})
}

// handleAuthError maps auth core failures onto the outward HTTP contract:
// every credential failure reads as one generic 401, policy denial as 403
// and directory outage as 503.
func (a *API) handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredential):
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrNotAuthorized):
		_ = audit.LogEvent(r.Context(), "auth.login.denied", map[string]any{"reason": "policy"})
		writeError(w, r, http.StatusForbidden, "access denied")
	case errors.Is(err, auth.ErrDirectoryUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "authentication temporarily unavailable")
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrAlreadyExists):
		writeError(w, r, http.StatusConflict, "email already registered")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
