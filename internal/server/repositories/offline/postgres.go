package offline

import (
	"context"
	"fmt"

	"github.com/classchat-io/classchat/internal/dbx"
	"github.com/classchat-io/classchat/internal/server/models"
)

// PostgresRepository implements Repository against PostgreSQL.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Enqueue(ctx context.Context, m *models.OfflineMessage) error {
	query := `INSERT INTO offline_messages
		 (receiver, sender, message_type, content, timestamp, is_group, group_name)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		m.Receiver, m.Sender, m.Type, m.Content, m.Timestamp, m.IsGroup, m.GroupName)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Undelivered(ctx context.Context, receiver string) ([]models.OfflineMessage, error) {
	query := `SELECT id, sender, message_type, content, timestamp
		 FROM offline_messages
		 WHERE receiver = $1 AND delivered = FALSE
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

func (r *PostgresRepository) MarkDelivered(ctx context.Context, receiver string) error {
	query := `UPDATE offline_messages
		 SET delivered = TRUE
		 WHERE receiver = $1 AND delivered = FALSE`

	if _, err := r.db.ExecContext(ctx, query, receiver); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
