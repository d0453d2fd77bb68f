package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/devricklin/feishu-vault/internal/biz/domain"
	"github.com/devricklin/feishu-vault/internal/biz/repo"
)

type cannedMessageRepo struct {
	db *sql.DB
}

// NewCannedMessageRepo creates a new canned message repository
func NewCannedMessageRepo(d *Data) repo.CannedMessageRepo {
	return &cannedMessageRepo{db: d.db}
}

// Set upserts the content stored under name
func (r *cannedMessageRepo) Set(ctx context.Context, name domain.MessageName, content string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO canned_messages (name, content, updated_at) VALUES (?, ?, ?)
	`, string(name), content, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save message %s: %w", name, err)
	}
	return nil
}

// Get returns the content stored under name and whether it exists
func (r *cannedMessageRepo) Get(ctx context.Context, name domain.MessageName) (string, bool, error) {
	var content string
	err := r.db.QueryRowContext(ctx, `SELECT content FROM canned_messages WHERE name = ?`, string(name)).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query message %s: %w", name, err)
	}
	return content, true, nil
}
