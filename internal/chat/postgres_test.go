package chat

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGStoreCreateSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("insert into sessions").
		WithArgs(sqlmock.AnyArg(), "u1", "First chat", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewPGStore(db)
	session, err := store.CreateSession(context.Background(), "u1", "First chat")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if session.ID == "" || session.UserID != "u1" {
		t.Fatalf("unexpected session: %+v", session)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreAppendMessageChecksOwnership(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select 1 from sessions").
		WithArgs("s1", "intruder").
		WillReturnError(sql.ErrNoRows)

	store := NewPGStore(db)
	_, err = store.AppendMessage(context.Background(), "intruder", "s1", RoleUser, "hi")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign session, got %v", err)
	}
}

func TestPGStoreAppendMessageValidatesInput(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	store := NewPGStore(db)
	if _, err := store.AppendMessage(context.Background(), "u1", "s1", Role("bot"), "hi"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad role, got %v", err)
	}
	if _, err := store.AppendMessage(context.Background(), "u1", "s1", RoleUser, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty content, got %v", err)
	}
}

func TestPGStoreListMessages(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select 1 from sessions").
		WithArgs("s1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "session_id", "user_id", "role", "content", "created_at"}).
		AddRow("m1", "s1", "u1", "user", "hello", now).
		AddRow("m2", "s1", "u1", "assistant", "hi there", now.Add(time.Second))
	mock.ExpectQuery("select id, session_id, user_id, role, content, created_at from messages").
		WithArgs("s1").
		WillReturnRows(rows)

	store := NewPGStore(db)
	msgs, err := store.ListMessages(context.Background(), "u1", "s1")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 2 || msgs[1].Role != RoleAssistant {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
}

func TestPGStoreRenameAndDeleteRequireOwnedRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("update sessions set title").
		WithArgs("New title", "s1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("delete from sessions").
		WithArgs("s1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewPGStore(db)
	if err := store.RenameSession(context.Background(), "u1", "s1", "New title"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for zero rows, got %v", err)
	}
	if err := store.DeleteSession(context.Background(), "u1", "s1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
}

func TestMemoryStoreOwnershipScoping(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	session, err := store.CreateSession(ctx, "u1", "Chat")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := store.AppendMessage(ctx, "u1", session.ID, RoleUser, "hello"); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if _, err := store.ListMessages(ctx, "u2", session.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign subject, got %v", err)
	}
	if err := store.DeleteSession(ctx, "u1", session.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := store.ListMessages(ctx, "u1", session.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
