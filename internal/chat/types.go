package chat

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("chat: not found")
	ErrInvalidInput = errors.New("chat: invalid input")
)

// Role marks who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the accepted values.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Session is a chat conversation owned by one subject. The owner is the
// token subject resolved at authentication time (local user ID or
// directory DN).
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one entry in a session.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"-"`
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
