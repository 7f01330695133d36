package user

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenRepo struct{}

func (brokenRepo) GetByID(context.Context, string) (*User, error) { return nil, errors.New("db down") }

func TestValidateUser(t *testing.T) {
	ctx := context.Background()
	repo := NewMemRepo(User{ID: "u-1", Username: "ana", Email: "ana@example.com"})
	svc := NewService(repo)

	ok, err := svc.ValidateUser(ctx, "u-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.ValidateUser(ctx, "u-2")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = NewService(brokenRepo{}).ValidateUser(ctx, "u-1")
	assert.Error(t, err)

	assert.ErrorIs(t, repo.Add(User{ID: "u-1"}), ErrAlreadyExist)
}
