package auth

import "time"

// Source marks which path authenticated an identity.
type Source string

const (
	SourceLocal     Source = "local"
	SourceDirectory Source = "directory"
)

// User is a local account with a verifiable password hash. The plaintext
// secret is never stored.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Identity is the result of a successful authentication. It is handed to
// downstream collaborators and never persisted by the auth core itself.
type Identity struct {
	// Subject is the opaque token subject: a local user ID or a directory DN.
	Subject     string
	DisplayName string
	Email       string
	Source      Source
}

// TokenResult carries a freshly minted token and the identity it stands for.
type TokenResult struct {
	AccessToken string
	ExpiresAt   time.Time
	Identity    Identity
}
