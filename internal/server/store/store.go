// Package store is the persistence service used by the router. It binds the
// dialect-specific repositories to one *sql.DB and owns row timestamps.
// Every operation is single-statement durable except CreateGroup, which
// wraps the group row and the creator's membership row in one transaction.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/classchat-io/classchat/internal/common"
	"github.com/classchat-io/classchat/internal/dbx"
	"github.com/classchat-io/classchat/internal/server/models"
	"github.com/classchat-io/classchat/internal/server/repositories/repomanager"
)

// Service implements the router's persistence needs on top of the
// repository layer.
type Service struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
	now   func() time.Time
}

func New(db *sql.DB, repos repomanager.RepositoryManager) *Service {
	return &Service{db: db, repos: repos, now: time.Now}
}

// TouchUser registers the user on first sight or updates last_seen.
func (s *Service) TouchUser(ctx context.Context, username string) error {
	return s.repos.Users(s.db).Touch(ctx, username, s.now())
}

// UserExists reports whether the username has ever registered.
func (s *Service) UserExists(ctx context.Context, username string) (bool, error) {
	return s.repos.Users(s.db).Exists(ctx, username)
}

// AppendHistory stamps and stores one history row.
func (s *Service) AppendHistory(ctx context.Context, m *models.HistoryMessage) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = s.now()
	}
	return s.repos.Messages(s.db).Append(ctx, m)
}

// Conversation returns the private history between a and b, oldest-first.
func (s *Service) Conversation(ctx context.Context, a, b string, limit int) ([]models.HistoryMessage, error) {
	return s.repos.Messages(s.db).Conversation(ctx, a, b, limit)
}

// GroupHistory returns a group's history, oldest-first.
func (s *Service) GroupHistory(ctx context.Context, group string, limit int) ([]models.HistoryMessage, error) {
	return s.repos.Messages(s.db).GroupHistory(ctx, group, limit)
}

// EnqueueOffline stamps and stores a queued delivery.
func (s *Service) EnqueueOffline(ctx context.Context, m *models.OfflineMessage) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = s.now()
	}
	return s.repos.Offline(s.db).Enqueue(ctx, m)
}

// UndeliveredFor returns the receiver's queued messages in enqueue order.
func (s *Service) UndeliveredFor(ctx context.Context, receiver string) ([]models.OfflineMessage, error) {
	return s.repos.Offline(s.db).Undelivered(ctx, receiver)
}

// MarkDelivered flips the receiver's queued messages to delivered.
func (s *Service) MarkDelivered(ctx context.Context, receiver string) error {
	return s.repos.Offline(s.db).MarkDelivered(ctx, receiver)
}

// CreateGroup creates a group with creator as its sole initial member.
// Returns common.ErrAlreadyExists if the name is taken. The existence check
// is race-free because the router serializes all store writes behind its
// registry lock.
func (s *Service) CreateGroup(ctx context.Context, name, creator string) error {
	taken, err := s.repos.Groups(s.db).Exists(ctx, name)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("group %q: %w", name, common.ErrAlreadyExists)
	}

	now := s.now()
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Groups(tx)
		if err := repo.Create(ctx, name, creator, now); err != nil {
			return err
		}
		return repo.AddMember(ctx, name, creator, now)
	})
}

// JoinGroup records membership; re-joining is a no-op.
func (s *Service) JoinGroup(ctx context.Context, group, username string) error {
	return s.repos.Groups(s.db).AddMember(ctx, group, username, s.now())
}

// GroupMembers returns the persisted member set of a group.
func (s *Service) GroupMembers(ctx context.Context, group string) ([]string, error) {
	return s.repos.Groups(s.db).Members(ctx, group)
}

// GroupExists reports whether the group name is known.
func (s *Service) GroupExists(ctx context.Context, name string) (bool, error) {
	return s.repos.Groups(s.db).Exists(ctx, name)
}

// ListGroups returns every group.
func (s *Service) ListGroups(ctx context.Context) ([]models.Group, error) {
	return s.repos.Groups(s.db).All(ctx)
}
