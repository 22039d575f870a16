package groups

import (
	"context"
	"time"

	"github.com/classchat-io/classchat/internal/server/models"
)

// Repository persists groups and their membership. Membership only grows.
type Repository interface {
	// Create inserts a new group row. The creator's membership row is a
	// separate AddMember call so both can share one transaction.
	Create(ctx context.Context, name, creator string, now time.Time) error

	// AddMember records membership. Idempotent: re-joining is a no-op.
	AddMember(ctx context.Context, group, username string, now time.Time) error

	// Members returns all persisted member usernames of a group.
	Members(ctx context.Context, group string) ([]string, error)

	// Exists reports whether a group with the given name exists.
	Exists(ctx context.Context, name string) (bool, error)

	// All returns every group.
	All(ctx context.Context) ([]models.Group, error)
}
