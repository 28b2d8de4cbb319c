package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultTokenTTL = 60 * time.Minute

// Tokens issues and verifies signed bearer tokens. The signing secret and
// method are fixed at construction; rotating the secret invalidates every
// previously issued token.
type Tokens struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption configures Tokens.
type TokenOption func(*Tokens) error

// WithSigningMethod selects the HMAC variant by name (HS256, HS384, HS512).
func WithSigningMethod(name string) TokenOption {
	return func(t *Tokens) error {
		switch strings.ToUpper(strings.TrimSpace(name)) {
		case "", "HS256":
			t.method = jwt.SigningMethodHS256
		case "HS384":
			t.method = jwt.SigningMethodHS384
		case "HS512":
			t.method = jwt.SigningMethodHS512
		default:
			return errors.New("auth: unsupported signing method " + name)
		}
		return nil
	}
}

// WithTokenTTL overrides the access token lifetime.
func WithTokenTTL(ttl time.Duration) TokenOption {
	return func(t *Tokens) error {
		if ttl > 0 {
			t.ttl = ttl
		}
		return nil
	}
}

// WithTokenClock overrides the time source (useful for tests).
func WithTokenClock(fn func() time.Time) TokenOption {
	return func(t *Tokens) error {
		if fn != nil {
			t.now = fn
		}
		return nil
	}
}

// NewTokens constructs a token service signing with the given secret.
func NewTokens(secret string, opts ...TokenOption) (*Tokens, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: token secret is required")
	}
	t := &Tokens{
		secret: []byte(secret),
		method: jwt.SigningMethodHS256,
		ttl:    defaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// TTL returns the configured token lifetime.
func (t *Tokens) TTL() time.Duration { return t.ttl }

// Issue signs a token for the given subject with claims {sub, iat, exp}.
func (t *Tokens) Issue(subject string) (string, time.Time, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, errors.New("auth: subject is required")
	}
	now := t.now().UTC()
	expiresAt := now.Add(t.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(t.method, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks the signature and expiry and returns the token subject.
// It fails with ErrTokenExpired or ErrTokenInvalid; callers treat both as
// a generic unauthenticated outcome, keeping the distinction for logs.
// Tokens with an issued-at in the future are accepted as long as they have
// not expired; there is no not-before check.
func (t *Tokens) Verify(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrTokenInvalid
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (any, error) {
		if tok.Method != t.method {
			return nil, ErrTokenInvalid
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenInvalid
	}
	if !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", ErrTokenInvalid
	}
	return claims.Subject, nil
}
