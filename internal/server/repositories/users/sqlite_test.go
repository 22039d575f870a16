package users

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newRepoWithMock(t *testing.T) (*SQLiteRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewSQLiteRepository(db), mock, db
}

var now = time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)

func TestTouch_InsertOrUpdate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+users\s*\(username,\s*registered_at,\s*last_seen\)\s*VALUES\s*\(\?,\s*\?,\s*\?\)\s*ON\s+CONFLICT\(username\)\s+DO\s+UPDATE\s+SET\s+last_seen\s*=\s*excluded\.last_seen\s*$`

	mock.ExpectExec(q).
		WithArgs("alice", now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Touch(context.Background(), "alice", now); err != nil {
		t.Fatalf("Touch error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestTouch_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+users`).
		WithArgs("alice", now, now).
		WillReturnError(errors.New("db down"))

	if err := repo.Touch(context.Background(), "alice", now); err == nil {
		t.Fatal("expected wrapped db error, got nil")
	}
}

func TestExists(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+COUNT\(\*\)\s+FROM\s+users\s+WHERE\s+username\s*=\s*\?\s*$`

	mock.ExpectQuery(q).WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(q).WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	ok, err := repo.Exists(context.Background(), "alice")
	if err != nil || !ok {
		t.Fatalf("Exists(alice) = %v, %v; want true, nil", ok, err)
	}

	ok, err = repo.Exists(context.Background(), "ghost")
	if err != nil || ok {
		t.Fatalf("Exists(ghost) = %v, %v; want false, nil", ok, err)
	}
}
