package chat

import "context"

// Store persists sessions and messages. Every operation is scoped to the
// owning subject; a session belonging to someone else reads as not found.
type Store interface {
	CreateSession(ctx context.Context, userID, title string) (*Session, error)
	ListSessions(ctx context.Context, userID string) ([]*Session, error)
	RenameSession(ctx context.Context, userID, sessionID, title string) error
	DeleteSession(ctx context.Context, userID, sessionID string) error
	AppendMessage(ctx context.Context, userID, sessionID string, role Role, content string) (*Message, error)
	ListMessages(ctx context.Context, userID, sessionID string) ([]*Message, error)
}
