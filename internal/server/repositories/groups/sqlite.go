package groups

import (
	"context"
	"fmt"
	"time"

	"github.com/classchat-io/classchat/internal/dbx"
	"github.com/classchat-io/classchat/internal/server/models"
)

// SQLiteRepository implements Repository against SQLite.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, name, creator string, now time.Time) error {
	query := `INSERT INTO groups (group_name, creator, created_at) VALUES (?, ?, ?)`

	if _, err := r.db.ExecContext(ctx, query, name, creator, now); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) AddMember(ctx context.Context, group, username string, now time.Time) error {
	query := `INSERT INTO group_members (group_name, username, joined_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(group_name, username) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, group, username, now); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Members(ctx context.Context, group string) ([]string, error) {
	query := `SELECT username FROM group_members WHERE group_name = ?`

	rows, err := r.db.QueryContext(ctx, query, group)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Exists(ctx context.Context, name string) (bool, error) {
	query := `SELECT COUNT(*) FROM groups WHERE group_name = ?`

	var count int
	if err := r.db.QueryRowContext(ctx, query, name).Scan(&count); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return count > 0, nil
}

func (r *SQLiteRepository) All(ctx context.Context) ([]models.Group, error) {
	query := `SELECT id, group_name, creator, created_at FROM groups ORDER BY group_name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.Group
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Creator, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
