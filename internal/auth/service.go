package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kavosh.dev/internal/directory"
	"kavosh.dev/internal/obs"
)

// Service is the composition point of the auth core: it routes each login
// between the local credential store and the directory authenticator,
// applies the authorization policy and mints tokens. It holds no mutable
// state, so concurrent logins need no coordination.
type Service struct {
	users         UserStore
	tokens        *Tokens
	dir           directory.Directory
	policy        *Policy
	localOverride map[string]struct{}
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithDirectory enables the directory authentication path. Every directory
// identity must pass the policy before a token is minted.
func WithDirectory(dir directory.Directory, policy *Policy) ServiceOption {
	return func(s *Service) error {
		if dir == nil {
			return errors.New("auth: directory is nil")
		}
		if policy == nil {
			return errors.New("auth: policy is required with a directory")
		}
		s.dir = dir
		s.policy = policy
		return nil
	}
}

// WithLocalOverride forces the listed identifiers onto the local path even
// when a directory is configured.
func WithLocalOverride(identifiers []string) ServiceOption {
	return func(s *Service) error {
		for _, id := range identifiers {
			id = strings.ToLower(strings.TrimSpace(id))
			if id != "" {
				s.localOverride[id] = struct{}{}
			}
		}
		return nil
	}
}

// NewService constructs the auth router.
func NewService(users UserStore, tokens *Tokens, opts ...ServiceOption) (*Service, error) {
	if users == nil {
		return nil, errors.New("auth: user store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token service is required")
	}
	s := &Service{
		users:         users,
		tokens:        tokens,
		localOverride: make(map[string]struct{}),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Login authenticates identifier+secret and returns a minted token. All
// credential-path failures collapse outward into ErrInvalidCredential;
// only ErrDirectoryUnavailable and ErrNotAuthorized stay distinct. The
// internal failure kind is logged before being collapsed.
func (s *Service) Login(ctx context.Context, identifier, secret string) (TokenResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		return TokenResult{}, ErrInvalidCredential
	}
	if s.useLocalPath(identifier) {
		return s.loginLocal(ctx, identifier, secret)
	}
	return s.loginDirectory(ctx, identifier, secret)
}

func (s *Service) useLocalPath(identifier string) bool {
	if s.dir == nil {
		return true
	}
	_, forced := s.localOverride[strings.ToLower(identifier)]
	return forced
}

func (s *Service) loginLocal(ctx context.Context, identifier, secret string) (TokenResult, error) {
	user, err := s.users.FindByEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logDenied("local", identifier, "unknown_identifier")
			obs.ObserveAuthAttempt("local", "invalid_credential")
			return TokenResult{}, ErrInvalidCredential
		}
		return TokenResult{}, err
	}
	if !VerifyPassword(user.PasswordHash, secret) {
		s.logDenied("local", identifier, "password_mismatch")
		obs.ObserveAuthAttempt("local", "invalid_credential")
		return TokenResult{}, ErrInvalidCredential
	}
	// Presence of a matching credential is sufficient on the local path;
	// no policy applies.
	identity := Identity{Subject: user.ID, Email: user.Email, Source: SourceLocal}
	obs.ObserveAuthAttempt("local", "ok")
	return s.mint(identity)
}

func (s *Service) loginDirectory(ctx context.Context, identifier, secret string) (TokenResult, error) {
	profile, err := s.dir.Authenticate(ctx, identifier, secret)
	if err != nil {
		if directory.Unavailable(err) {
			s.logDenied("directory", identifier, "unavailable")
			obs.ObserveAuthAttempt("directory", "unavailable")
			return TokenResult{}, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
		}
		// Not-found and rejected bind are logged distinctly but leave the
		// service as one generic credential failure.
		switch {
		case errors.Is(err, directory.ErrUserNotFound):
			s.logDenied("directory", identifier, "unknown_identifier")
		default:
			s.logDenied("directory", identifier, "bind_rejected")
		}
		obs.ObserveAuthAttempt("directory", "invalid_credential")
		return TokenResult{}, ErrInvalidCredential
	}
	if !s.policy.Authorized(profile) {
		s.logDenied("directory", identifier, "policy_denied")
		obs.ObserveAuthAttempt("directory", "not_authorized")
		return TokenResult{}, ErrNotAuthorized
	}
	identity := Identity{
		Subject:     profile.DN,
		DisplayName: profile.DisplayName,
		Email:       profile.Mail,
		Source:      SourceDirectory,
	}
	if identity.Email == "" {
		identity.Email = profile.UserPrincipalName
	}
	obs.ObserveAuthAttempt("directory", "ok")
	return s.mint(identity)
}

// Register creates a local account and logs it in. Only the hash of the
// password is ever persisted.
func (s *Service) Register(ctx context.Context, email, password string) (TokenResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return TokenResult{}, fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	}
	if len(password) < 6 {
		return TokenResult{}, fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidInput)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return TokenResult{}, err
	}
	user := &User{Email: email, PasswordHash: hash, CreatedAt: time.Now().UTC()}
	if err := s.users.Create(ctx, user); err != nil {
		return TokenResult{}, err
	}
	identity := Identity{Subject: user.ID, Email: user.Email, Source: SourceLocal}
	return s.mint(identity)
}

func (s *Service) mint(identity Identity) (TokenResult, error) {
	token, expiresAt, err := s.tokens.Issue(identity.Subject)
	if err != nil {
		return TokenResult{}, err
	}
	return TokenResult{AccessToken: token, ExpiresAt: expiresAt, Identity: identity}, nil
}

func (s *Service) logDenied(path, identifier, reason string) {
	obs.LogEvent(map[string]any{
		"ts":         time.Now().UTC().Format(time.RFC3339Nano),
		"level":      "info",
		"msg":        "login_denied",
		"path":       path,
		"identifier": identifier,
		"reason":     reason,
	})
}
