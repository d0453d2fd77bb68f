package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/devricklin/feishu-vault/internal/biz/repo"
)

// userRepo implements the User repository
type userRepo struct {
	db *sql.DB
}

// NewUserRepo creates a new User repository
func NewUserRepo(d *Data) repo.UserRepo {
	return &userRepo{db: d.db}
}

// Register records userID; registering an existing id is a no-op
func (r *userRepo) Register(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO users (user_id, created_at) VALUES (?, ?)
	`, userID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}
	return nil
}

// ListIDs returns every registered user id in registration order
func (r *userRepo) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM users ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Count returns the number of registered users
func (r *userRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}
