package messages

import (
	"context"

	"github.com/classchat-io/classchat/internal/server/models"
)

// Repository persists the append-only message history.
type Repository interface {
	// Append stores one history row. History is never mutated or deleted.
	Append(ctx context.Context, m *models.HistoryMessage) error

	// Conversation returns up to limit most-recent private messages
	// between a and b (either direction), ordered oldest-first.
	Conversation(ctx context.Context, a, b string, limit int) ([]models.HistoryMessage, error)

	// GroupHistory returns up to limit most-recent messages for a group,
	// ordered oldest-first.
	GroupHistory(ctx context.Context, group string, limit int) ([]models.HistoryMessage, error)
}

// reverse flips a newest-first result set into oldest-first order.
func reverse(msgs []models.HistoryMessage) []models.HistoryMessage {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs
}
