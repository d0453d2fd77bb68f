package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/devricklin/feishu-vault/internal/biz/repo"
	"github.com/devricklin/feishu-vault/internal/data/migrations"
)

// dsnPragmas are applied to every connection of the pool
const dsnPragmas = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// goose keeps its base FS and dialect in package state
var migrateMu sync.Mutex

// Data owns the vault database handle
type Data struct {
	db *sql.DB
}

// NewData opens the sqlite database at dbPath and applies pending migrations
func NewData(ctx context.Context, dbPath string) (*Data, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Data{db: db}, nil
}

// RunMigrations applies the embedded migrations to db
func RunMigrations(ctx context.Context, db *sql.DB) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// DB returns the underlying handle
func (d *Data) DB() *sql.DB {
	return d.db
}

// Close closes the database connection
func (d *Data) Close() error {
	return d.db.Close()
}

// Repositories contains all repositories
type Repositories struct {
	Sessions  repo.SessionRepo
	Users     repo.UserRepo
	Messages  repo.CannedMessageRepo
	Transport repo.Transport
}

// NewRepositories creates all repositories over d. transport may be nil
// for processes that never talk to Feishu.
func NewRepositories(d *Data, transport repo.Transport) *Repositories {
	return &Repositories{
		Sessions:  NewSessionRepo(d),
		Users:     NewUserRepo(d),
		Messages:  NewCannedMessageRepo(d),
		Transport: transport,
	}
}
