package repo

import (
	"context"

	"github.com/devricklin/feishu-vault/internal/biz/domain"
)

// SessionRepo is the session repository interface
// Responsible for session and item persistence (SQLite)
type SessionRepo interface {
	// Create persists a session and all its items in one transaction.
	// Returns domain.ErrSessionIDConflict when the id is already taken.
	Create(ctx context.Context, session *domain.Session, items []domain.ContentItem) error

	// Get loads a session and its items in position order.
	// Returns domain.ErrNotFound when the session does not exist.
	Get(ctx context.Context, sessionID string) (*domain.Session, []domain.ContentItem, error)

	// ListRecent lists the most recent sessions with item counts
	ListRecent(ctx context.Context, limit int) ([]domain.SessionSummary, error)

	// Count returns the number of sessions
	Count(ctx context.Context) (int, error)
}
