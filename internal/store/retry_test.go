package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ashureev/aidiary/internal/domain"
	"github.com/ashureev/aidiary/internal/shared"
)

func TestRecordSideEffectRetriesWhenLocked(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	s := &SQLiteStore{db: db, retry: shared.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}}

	mock.ExpectExec("INSERT INTO side_effects").
		WillReturnError(errors.New("database is locked"))
	mock.ExpectExec("INSERT INTO side_effects").
		WithArgs("u1", "fp", "hello", int64(5), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = s.RecordSideEffect(context.Background(), &domain.SideEffectRecord{
		UserID: "u1", Fingerprint: "fp", Content: "hello", EntityID: 5,
	})
	if err != nil {
		t.Fatalf("RecordSideEffect: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateTaskDoesNotRetryOtherErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	s := &SQLiteStore{db: db, retry: shared.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}}

	mock.ExpectExec("INSERT INTO tasks").WillReturnError(errors.New("disk I/O error"))

	err = s.CreateTask(context.Background(), &domain.Task{UserID: "u1", Title: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
