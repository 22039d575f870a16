package users

import (
	"context"
	"time"
)

// Repository persists registered users. Registration happens implicitly on
// first connect; reconnects only touch last_seen.
type Repository interface {
	// Touch inserts the user on first sight or updates last_seen.
	Touch(ctx context.Context, username string, now time.Time) error

	// Exists reports whether the username has ever registered.
	Exists(ctx context.Context, username string) (bool, error)
}
