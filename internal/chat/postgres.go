package chat

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"kavosh.dev/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) CreateSession(ctx context.Context, userID, title string) (*Session, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	session := &Session{
		ID:        ids.New(),
		UserID:    userID,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`insert into sessions(id, user_id, title, created_at) values($1,$2,$3,$4)`,
		session.ID, session.UserID, session.Title, session.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *PGStore) ListSessions(ctx context.Context, userID string) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, user_id, title, created_at from sessions where user_id=$1 order by created_at desc`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.Title, &sess.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, &sess)
	}
	return res, rows.Err()
}

func (s *PGStore) RenameSession(ctx context.Context, userID, sessionID, title string) error {
	res, err := s.db.ExecContext(ctx,
		`update sessions set title=$1 where id=$2 and user_id=$3`, title, sessionID, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGStore) DeleteSession(ctx context.Context, userID, sessionID string) error {
	// Messages go with the session via on delete cascade.
	res, err := s.db.ExecContext(ctx,
		`delete from sessions where id=$1 and user_id=$2`, sessionID, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGStore) AppendMessage(ctx context.Context, userID, sessionID string, role Role, content string) (*Message, error) {
	if !role.Valid() || content == "" {
		return nil, ErrInvalidInput
	}
	if err := s.ownsSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	msg := &Message{
		ID:        ids.New(),
		SessionID: sessionID,
		UserID:    userID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`insert into messages(id, session_id, user_id, role, content, created_at) values($1,$2,$3,$4,$5,$6)`,
		msg.ID, msg.SessionID, msg.UserID, msg.Role, msg.Content, msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *PGStore) ListMessages(ctx context.Context, userID, sessionID string) ([]*Message, error) {
	if err := s.ownsSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`select id, session_id, user_id, role, content, created_at from messages where session_id=$1 order by created_at asc`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.UserID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, &m)
	}
	return res, rows.Err()
}

func (s *PGStore) ownsSession(ctx context.Context, userID, sessionID string) error {
	var one int
	err := s.db.QueryRowContext(ctx,
		`select 1 from sessions where id=$1 and user_id=$2`, sessionID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
