package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"kavosh.dev/internal/auth"
	"kavosh.dev/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/login",
	"/v1/auth/register",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

// withAuth verifies the bearer token on every non-public request and puts
// the resolved subject into the context. Expired and invalid tokens get the
// same outward response; the distinction is kept for logs.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			unauthenticated(w, r)
			return
		}

		subject, err := a.tokens.Verify(token)
		if err != nil {
			reason := "invalid"
			if errors.Is(err, auth.ErrTokenExpired) {
				reason = "expired"
			}
			obs.LogEvent(map[string]any{
				"ts":     time.Now().UTC().Format(time.RFC3339Nano),
				"level":  "info",
				"msg":    "token_rejected",
				"reason": reason,
				"path":   r.URL.Path,
			})
			unauthenticated(w, r)
			return
		}

		ctx := auth.ContextWithSubject(r.Context(), subject)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthenticated(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="kavosh"`)
	writeError(w, r, http.StatusUnauthorized, "unauthenticated")
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
