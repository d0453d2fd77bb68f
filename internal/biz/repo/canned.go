package repo

import (
	"context"

	"github.com/devricklin/feishu-vault/internal/biz/domain"
)

// CannedMessageRepo stores operator-overridable texts keyed by name
type CannedMessageRepo interface {
	// Set stores content for name, replacing any previous value
	Set(ctx context.Context, name domain.MessageName, content string) error

	// Get returns the stored content and whether it was ever set
	Get(ctx context.Context, name domain.MessageName) (string, bool, error)
}
