package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"kavosh.dev/internal/ids"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store for tests and DSN-less development runs.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	messages map[string][]*Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		messages: make(map[string][]*Message),
	}
}

func (s *MemoryStore) CreateSession(_ context.Context, userID, title string) (*Session, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	session := &Session{
		ID:        ids.New(),
		UserID:    userID,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	s.sessions[session.ID] = session
	copied := *session
	return &copied, nil
}

func (s *MemoryStore) ListSessions(_ context.Context, userID string) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []*Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			copied := *sess
			res = append(res, &copied)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (s *MemoryStore) RenameSession(_ context.Context, userID, sessionID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.UserID != userID {
		return ErrNotFound
	}
	sess.Title = title
	return nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.UserID != userID {
		return ErrNotFound
	}
	delete(s.sessions, sessionID)
	delete(s.messages, sessionID)
	return nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, userID, sessionID string, role Role, content string) (*Message, error) {
	if !role.Valid() || content == "" {
		return nil, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.UserID != userID {
		return nil, ErrNotFound
	}
	msg := &Message{
		ID:        ids.New(),
		SessionID: sessionID,
		UserID:    userID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	s.messages[sessionID] = append(s.messages[sessionID], msg)
	copied := *msg
	return &copied, nil
}

func (s *MemoryStore) ListMessages(_ context.Context, userID, sessionID string) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.UserID != userID {
		return nil, ErrNotFound
	}
	var res []*Message
	for _, m := range s.messages[sessionID] {
		copied := *m
		res = append(res, &copied)
	}
	return res, nil
}
