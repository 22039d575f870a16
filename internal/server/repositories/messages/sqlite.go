package messages

import (
	"context"
	"database/sql"
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

func (r *SQLiteRepository) Append(ctx context.Context, m *models.HistoryMessage) error {
	query := `INSERT INTO message_history
		 (sender, receiver, message_type, message_text, timestamp, is_group, group_name)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		m.Sender, m.Receiver, m.Type, m.Text, m.Timestamp, m.IsGroup, m.GroupName)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Conversation(ctx context.Context, a, b string, limit int) ([]models.HistoryMessage, error) {
	// Newest-first to apply the limit, reversed to oldest-first below.
	query := `SELECT id, sender, receiver, message_type, message_text, timestamp
		 FROM message_history
		 WHERE is_group = 0 AND (
			(sender = ? AND receiver = ?) OR
			(sender = ? AND receiver = ?)
		 )
		 ORDER BY timestamp DESC, id DESC
		 LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, a, b, b, a, limit)
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

func (r *SQLiteRepository) GroupHistory(ctx context.Context, group string, limit int) ([]models.HistoryMessage, error) {
	query := `SELECT id, sender, receiver, message_type, message_text, timestamp
		 FROM message_history
		 WHERE is_group = 1 AND group_name = ?
		 ORDER BY timestamp DESC, id DESC
		 LIMIT ?`

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

func scanConversation(rows *sql.Rows) ([]models.HistoryMessage, error) {
	var result []models.HistoryMessage
	for rows.Next() {
		var m models.HistoryMessage
		if err := rows.Scan(&m.ID, &m.Sender, &m.Receiver, &m.Type, &m.Text, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
