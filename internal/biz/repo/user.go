package repo

import "context"

// UserRepo records everyone who ever interacted with the bot
type UserRepo interface {
	// Register records userID. Registering the same id again is a no-op.
	Register(ctx context.Context, userID string) error

	// ListIDs returns every registered user id
	ListIDs(ctx context.Context) ([]string, error)

	// Count returns the number of registered users
	Count(ctx context.Context) (int, error)
}
