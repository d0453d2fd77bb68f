package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/devricklin/feishu-vault/internal/biz/domain"
	"github.com/devricklin/feishu-vault/internal/biz/repo"
)

// sessionRepo implements the Session repository
type sessionRepo struct {
	db *sql.DB
}

// NewSessionRepo creates a new Session repository
func NewSessionRepo(d *Data) repo.SessionRepo {
	return &sessionRepo{db: d.db}
}

// Create stores the session row and all of its items in one transaction
func (r *sessionRepo) Create(ctx context.Context, session *domain.Session, items []domain.ContentItem) error {
	err := WithTx(ctx, r.db, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (session_id, owner_id, protect, timer_minutes, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, session.ID, session.OwnerID, boolToInt(session.Protect), session.TimerMinutes, session.CreatedAt.Unix())
		if err != nil {
			if isPrimaryKeyConflict(err) {
				return domain.ErrSessionIDConflict
			}
			return fmt.Errorf("failed to insert session: %w", err)
		}

		for _, item := range items {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO session_items (session_id, position, kind, payload_ref, caption)
				VALUES (?, ?, ?, ?, ?)
			`, session.ID, item.Position, string(item.Kind), item.PayloadRef, item.Caption)
			if err != nil {
				return fmt.Errorf("failed to insert item %d: %w", item.Position, err)
			}
		}
		return nil
	})
	return err
}

// Get loads a session and its items in position order
func (r *sessionRepo) Get(ctx context.Context, sessionID string) (*domain.Session, []domain.ContentItem, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT session_id, owner_id, protect, timer_minutes, created_at
		FROM sessions
		WHERE session_id = ?
	`, sessionID)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query session: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT position, kind, payload_ref, caption
		FROM session_items
		WHERE session_id = ?
		ORDER BY position ASC
	`, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []domain.ContentItem
	for rows.Next() {
		item := domain.ContentItem{SessionID: sessionID}
		var kind string
		if err := rows.Scan(&item.Position, &kind, &item.PayloadRef, &item.Caption); err != nil {
			return nil, nil, fmt.Errorf("failed to scan item: %w", err)
		}
		item.Kind = domain.ContentKind(kind)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read items: %w", err)
	}

	return session, items, nil
}

// ListRecent lists the newest sessions with their item counts
func (r *sessionRepo) ListRecent(ctx context.Context, limit int) ([]domain.SessionSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.session_id, s.owner_id, s.protect, s.timer_minutes, s.created_at,
		       (SELECT COUNT(*) FROM session_items i WHERE i.session_id = s.session_id)
		FROM sessions s
		ORDER BY s.created_at DESC, s.rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.SessionSummary
	for rows.Next() {
		var summary domain.SessionSummary
		var protect int
		var createdAt int64
		if err := rows.Scan(&summary.ID, &summary.OwnerID, &protect, &summary.TimerMinutes, &createdAt, &summary.ItemCount); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		summary.Protect = protect != 0
		summary.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, summary)
	}
	return out, rows.Err()
}

// Count returns the number of stored sessions
func (r *sessionRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

func scanSession(row *sql.Row) (*domain.Session, error) {
	var session domain.Session
	var protect int
	var createdAt int64
	if err := row.Scan(&session.ID, &session.OwnerID, &protect, &session.TimerMinutes, &createdAt); err != nil {
		return nil, err
	}
	session.Protect = protect != 0
	session.CreatedAt = time.Unix(createdAt, 0)
	return &session, nil
}

func isPrimaryKeyConflict(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
