package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_RegisterIsIdempotent(t *testing.T) {
	repo := &mockUserRepo{}
	uc := NewUserUsecase(repo)
	ctx := context.Background()

	require.NoError(t, uc.Register(ctx, "u1"))
	require.NoError(t, uc.Register(ctx, "u1"))
	require.NoError(t, uc.Register(ctx, "u2"))
	require.NoError(t, uc.Register(ctx, ""))

	assert.Equal(t, 2, repo.registers, "repeat ids skip the store")
	count, err := uc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
