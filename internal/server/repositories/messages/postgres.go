package messages

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

func (r *PostgresRepository) Append(ctx context.Context, m *models.HistoryMessage) error {
	query := `INSERT INTO message_history
		 (sender, receiver, message_type, message_text, timestamp, is_group, group_name)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		m.Sender, m.Receiver, m.Type, m.Text, m.Timestamp, m.IsGroup, m.GroupName)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Conversation(ctx context.Context, a, b string, limit int) ([]models.HistoryMessage, error) {
	query := `SELECT id, sender, receiver, message_type, message_text, timestamp
		 FROM message_history
		 WHERE is_group = FALSE AND (
			(sender = $1 AND receiver = $2) OR
			(sender = $2 AND receiver = $1)
		 )
		 ORDER BY timestamp DESC, id DESC
		 LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, a, b, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	msgs, err := scanConversation(rows)
	if err != nil {
		return nil, err
	}
	return reverse(msgs), nil
}

func (r *PostgresRepository) GroupHistory(ctx context.Context, group string, limit int) ([]models.HistoryMessage, error) {
	query := `SELECT id, sender, receiver, message_type, message_text, timestamp
		 FROM message_history
		 WHERE is_group = TRUE AND group_name = $1
		 ORDER BY timestamp DESC, id DESC
		 LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, group, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	msgs, err := scanConversation(rows)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		msgs[i].IsGroup = true
		msgs[i].GroupName = group
	}
	return reverse(msgs), nil
}
