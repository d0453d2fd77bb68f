package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/devricklin/feishu-vault/internal/biz/domain"
	"github.com/devricklin/feishu-vault/internal/biz/repo"
)

// CannedMessageUsecase manages the operator-overridable start/help texts
type CannedMessageUsecase struct {
	operator domain.Operator
	repo     repo.CannedMessageRepo
}

// NewCannedMessageUsecase creates a new canned message usecase
func NewCannedMessageUsecase(operator domain.Operator, repo repo.CannedMessageRepo) *CannedMessageUsecase {
	return &CannedMessageUsecase{operator: operator, repo: repo}
}

// SetMessage stores content under name. Operator only.
func (uc *CannedMessageUsecase) SetMessage(ctx context.Context, callerID, name, content string) (domain.MessageName, error) {
	if err := uc.operator.Authorize(callerID); err != nil {
		return "", err
	}
	msgName, err := domain.ParseMessageName(name)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", domain.ErrEmptyText
	}
	if err := uc.repo.Set(ctx, msgName, content); err != nil {
		return "", fmt.Errorf("set message: %w", err)
	}
	return msgName, nil
}

// GetMessage returns the stored content for name, or def when it was never set
func (uc *CannedMessageUsecase) GetMessage(ctx context.Context, name domain.MessageName, def string) (string, error) {
	content, ok, err := uc.repo.Get(ctx, name)
	if err != nil {
		return def, fmt.Errorf("get message: %w", err)
	}
	if !ok {
		return def, nil
	}
	return content, nil
}
