package users

import (
	"context"
	"fmt"
	"time"

	"github.com/classchat-io/classchat/internal/dbx"
)

// PostgresRepository implements Repository against PostgreSQL.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Touch(ctx context.Context, username string, now time.Time) error {
	query := `INSERT INTO users (username, registered_at, last_seen)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (username) DO UPDATE SET last_seen = EXCLUDED.last_seen`

	if _, err := r.db.ExecContext(ctx, query, username, now, now); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Exists(ctx context.Context, username string) (bool, error) {
	query := `SELECT COUNT(*) FROM users WHERE username = $1`

	var count int
	if err := r.db.QueryRowContext(ctx, query, username).Scan(&count); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return count > 0, nil
}
