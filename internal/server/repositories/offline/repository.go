package offline

import (
	"context"

	"github.com/classchat-io/classchat/internal/server/models"
)

// Repository persists the offline delivery queue. The delivered flag is
// monotonic: MarkDelivered flips undelivered rows to delivered and repeated
// calls are no-ops.
type Repository interface {
	// Enqueue stores a message for a currently disconnected receiver.
	Enqueue(ctx context.Context, m *models.OfflineMessage) error

	// Undelivered returns the receiver's pending messages in enqueue order.
	Undelivered(ctx context.Context, receiver string) ([]models.OfflineMessage, error)

	// MarkDelivered flips all of the receiver's undelivered rows to
	// delivered. Idempotent.
	MarkDelivered(ctx context.Context, receiver string) error
}
