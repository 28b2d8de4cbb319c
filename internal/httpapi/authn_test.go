package httpapi

import (
	"net/http"
	"testing"
	"time"

	"kavosh.dev/internal/auth"
)

func TestProtectedRouteWithoutToken(t *testing.T) {
	c := newTestAPI(t)

	resp := c.do(http.MethodGet, "/v1/sessions", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if resp.Header.Get("WWW-Authenticate") == "" {
		t.Fatal("expected WWW-Authenticate header")
	}
	resp.Body.Close()
}

func TestProtectedRouteWithGarbageToken(t *testing.T) {
	c := newTestAPI(t)

	for _, header := range []map[string]string{
		{"Authorization": "Bearer not.a.jwt"},
		{"Authorization": "Basic dXNlcjpwYXNz"},
		{"Authorization": "Bearer "},
	} {
		resp := c.do(http.MethodGet, "/v1/sessions", nil, header)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %v, got %d", header, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestProtectedRouteWithForeignSignature(t *testing.T) {
	c := newTestAPI(t)

	other, _ := auth.NewTokens("different-secret")
	token, _, err := other.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	resp := c.do(http.MethodGet, "/v1/sessions", nil, bearerHeader(token))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for foreign signature, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestProtectedRouteWithExpiredToken(t *testing.T) {
	c := newTestAPI(t)

	past := time.Now().Add(-2 * time.Hour)
	stale, _ := auth.NewTokens("test-secret",
		auth.WithTokenTTL(time.Minute),
		auth.WithTokenClock(func() time.Time { return past }),
	)
	token, _, err := stale.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	resp := c.do(http.MethodGet, "/v1/sessions", nil, bearerHeader(token))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestExtractBearerToken(t *testing.T) {
	if _, err := extractBearerToken(""); err == nil {
		t.Fatal("expected error for empty header")
	}
	if _, err := extractBearerToken("Token abc"); err == nil {
		t.Fatal("expected error for non-bearer scheme")
	}
	token, err := extractBearerToken("bearer abc123")
	if err != nil || token != "abc123" {
		t.Fatalf("case-insensitive scheme should parse, got %q err=%v", token, err)
	}
}
