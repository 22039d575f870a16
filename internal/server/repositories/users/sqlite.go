package users

import (
	"context"
	"fmt"
	"time"

	"github.com/classchat-io/classchat/internal/dbx"
)

// SQLiteRepository implements Repository against SQLite.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Touch(ctx context.Context, username string, now time.Time) error {
	query := `INSERT INTO users (username, registered_at, last_seen)
		 VALUES (?, ?, ?)
		 ON CONFLICT(username) DO UPDATE SET last_seen = excluded.last_seen`

	if _, err := r.db.ExecContext(ctx, query, username, now, now); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Exists(ctx context.Context, username string) (bool, error) {
	query := `SELECT COUNT(*) FROM users WHERE username = ?`

	var count int
	if err := r.db.QueryRowContext(ctx, query, username).Scan(&count); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return count > 0, nil
}
