package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"kavosh.dev/internal/auth"
	"kavosh.dev/internal/chat"
	"kavosh.dev/internal/directory"
)

type fakeDirectory struct {
	profile  *directory.Profile
	err      error
	password string
}

func (d *fakeDirectory) Authenticate(_ context.Context, _, password string) (*directory.Profile, error) {
	if d.err != nil {
		return nil, d.err
	}
	if d.password != "" && password != d.password {
		return nil, directory.ErrInvalidCredential
	}
	return d.profile, nil
}

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T, opts ...auth.ServiceOption) *apiClient {
	t.Helper()

	tokens, err := auth.NewTokens("test-secret")
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	svc, err := auth.NewService(auth.NewMemoryUserStore(), tokens, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	api := New(ReadyProbe{}, "test", svc, tokens, chat.NewMemoryStore())
	api.rateBurst = 100
	api.ratePerSec = 100

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{baseURL: srv.URL, client: srv.Client(), t: t}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func bearerHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func registerAndLogin(t *testing.T, c *apiClient, email, password string) string {
	t.Helper()
	resp := c.do(http.MethodPost, "/v1/auth/register", map[string]string{"email": email, "password": password}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodPost, "/v1/auth/login", map[string]string{"email": email, "password": password}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", resp.StatusCode)
	}
	var tok tokenResponse
	decodeBody(t, resp, &tok)
	if tok.AccessToken == "" || tok.TokenType != "bearer" {
		t.Fatalf("unexpected token response: %+v", tok)
	}
	return tok.AccessToken
}

func TestLocalLoginEndToEnd(t *testing.T) {
	c := newTestAPI(t)
	token := registerAndLogin(t, c, "admin@example.com", "hunter2")

	// The token authenticates subsequent requests.
	resp := c.do(http.MethodGet, "/v1/sessions", nil, bearerHeader(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLoginWrongPasswordIsGeneric401(t *testing.T) {
	c := newTestAPI(t)
	registerAndLogin(t, c, "admin@example.com", "hunter2")

	for _, body := range []map[string]string{
		{"email": "admin@example.com", "password": "wrong"},
		{"email": "ghost@example.com", "password": "wrong"},
	} {
		resp := c.do(http.MethodPost, "/v1/auth/login", body, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", resp.StatusCode)
		}
		var payload map[string]any
		decodeBody(t, resp, &payload)
		if payload["error"] != "invalid credentials" {
			t.Fatalf("expected generic message, got %v", payload["error"])
		}
	}
}

func TestDirectoryLoginDeniedByPolicy(t *testing.T) {
	dir := &fakeDirectory{
		password: "hunter2",
		profile:  &directory.Profile{DN: "CN=Intern,DC=corp,DC=local", Title: "Intern"},
	}
	c := newTestAPI(t, auth.WithDirectory(dir, auth.NewPolicy([]string{"Manager"}, nil)))

	resp := c.do(http.MethodPost, "/v1/auth/login", map[string]string{"email": "intern@corp.local", "password": "hunter2"}, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for policy denial, got %d", resp.StatusCode)
	}
	var payload map[string]any
	decodeBody(t, resp, &payload)
	if _, hasToken := payload["access_token"]; hasToken {
		t.Fatal("no token must be issued on policy denial")
	}
}

func TestDirectoryUnavailableIs503(t *testing.T) {
	dir := &fakeDirectory{err: directory.ErrUnreachable}
	c := newTestAPI(t, auth.WithDirectory(dir, auth.NewPolicy([]string{"Manager"}, nil)))

	resp := c.do(http.MethodPost, "/v1/auth/login", map[string]string{"email": "jdoe@corp.local", "password": "hunter2"}, nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for directory outage, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestDirectoryLoginAuthorized(t *testing.T) {
	dir := &fakeDirectory{
		password: "hunter2",
		profile: &directory.Profile{
			DN:    "CN=John Doe,OU=Staff,DC=corp,DC=local",
			Mail:  "jdoe@corp.local",
			Title: "Manager",
		},
	}
	c := newTestAPI(t, auth.WithDirectory(dir, auth.NewPolicy([]string{"Manager"}, nil)))

	resp := c.do(http.MethodPost, "/v1/auth/login", map[string]string{"email": "jdoe@corp.local", "password": "hunter2"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var tok tokenResponse
	decodeBody(t, resp, &tok)

	resp = c.do(http.MethodPost, "/v1/sessions", map[string]string{"title": "Planning"}, bearerHeader(tok.AccessToken))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSessionAndMessageFlow(t *testing.T) {
	c := newTestAPI(t)
	token := registerAndLogin(t, c, "admin@example.com", "hunter2")

	resp := c.do(http.MethodPost, "/v1/sessions", map[string]string{"title": "First chat"}, bearerHeader(token))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session: expected 201, got %d", resp.StatusCode)
	}
	var session chat.Session
	decodeBody(t, resp, &session)
	if session.ID == "" {
		t.Fatal("expected session id")
	}

	resp = c.do(http.MethodPost, "/v1/sessions/"+session.ID+"/messages",
		map[string]string{"content": "hello"}, bearerHeader(token))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("append message: expected 201, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodGet, "/v1/sessions/"+session.ID+"/messages", nil, bearerHeader(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list messages: expected 200, got %d", resp.StatusCode)
	}
	var listing struct {
		Items []chat.Message `json:"items"`
	}
	decodeBody(t, resp, &listing)
	if len(listing.Items) != 1 || listing.Items[0].Content != "hello" || listing.Items[0].Role != chat.RoleUser {
		t.Fatalf("unexpected messages: %+v", listing.Items)
	}

	resp = c.do(http.MethodPatch, "/v1/sessions/"+session.ID, map[string]string{"title": "Renamed"}, bearerHeader(token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rename: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.do(http.MethodDelete, "/v1/sessions/"+session.ID, nil, bearerHeader(token))
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSessionsAreScopedPerSubject(t *testing.T) {
	c := newTestAPI(t)
	tokenA := registerAndLogin(t, c, "alice@example.com", "hunter2")
	tokenB := registerAndLogin(t, c, "bob@example.com", "hunter2")

	resp := c.do(http.MethodPost, "/v1/sessions", map[string]string{"title": "Private"}, bearerHeader(tokenA))
	var session chat.Session
	decodeBody(t, resp, &session)

	resp = c.do(http.MethodGet, "/v1/sessions/"+session.ID+"/messages", nil, bearerHeader(tokenB))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign session, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHealthAndInfoArePublic(t *testing.T) {
	c := newTestAPI(t)
	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		resp := c.do(http.MethodGet, path, nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}
