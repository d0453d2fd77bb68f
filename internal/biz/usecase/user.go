package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/devricklin/feishu-vault/internal/biz/repo"
)

// UserUsecase records every user that interacts with the bot
type UserUsecase struct {
	userRepo repo.UserRepo

	// ids already written during this process lifetime
	seen sync.Map
}

// NewUserUsecase creates a new user usecase
func NewUserUsecase(userRepo repo.UserRepo) *UserUsecase {
	return &UserUsecase{userRepo: userRepo}
}

// Register records userID once. Repeated calls skip the store.
func (uc *UserUsecase) Register(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	if _, ok := uc.seen.Load(userID); ok {
		return nil
	}
	if err := uc.userRepo.Register(ctx, userID); err != nil {
		return fmt.Errorf("register user: %w", err)
	}
	uc.seen.Store(userID, struct{}{})
	return nil
}

// Count returns the number of registered users
func (uc *UserUsecase) Count(ctx context.Context) (int, error) {
	return uc.userRepo.Count(ctx)
}
