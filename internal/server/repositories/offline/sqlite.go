package offline

import (
	"context"
	"fmt"

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

func (r *SQLiteRepository) Enqueue(ctx context.Context, m *models.OfflineMessage) error {
	query := `INSERT INTO offline_messages
		 (receiver, sender, message_type, content, timestamp, is_group, group_name)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		m.Receiver, m.Sender, m.Type, m.Content, m.Timestamp, m.IsGroup, m.GroupName)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Undelivered(ctx context.Context, receiver string) ([]models.OfflineMessage, error) {
	query := `SELECT id, sender, message_type, content, timestamp
		 FROM offline_messages
		 WHERE receiver = ? AND delivered = 0
		 ORDER BY timestamp, id`

	rows, err := r.db.QueryContext(ctx, query, receiver)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.OfflineMessage
	for rows.Next() {
		m := models.OfflineMessage{Receiver: receiver}
		if err := rows.Scan(&m.ID, &m.Sender, &m.Type, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) MarkDelivered(ctx context.Context, receiver string) error {
	query := `UPDATE offline_messages
		 SET delivered = 1
		 WHERE receiver = ? AND delivered = 0`

	if _, err := r.db.ExecContext(ctx, query, receiver); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
