package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestValidUserID(t *testing.T) {
	assert.True(t, validUserID(uuid.NewString()))
	assert.False(t, validUserID("abc"))
	assert.False(t, validUserID(""))
	assert.False(t, validUserID("1; DROP TABLE users"))
}

// Malformed ids never reach the pool, so a nil pool is enough here.
func TestUserRepository_MalformedIDIsNotFound(t *testing.T) {
	repo := NewUserRepository(nil)

	user, err := repo.GetByID(context.Background(), "abc")
	assert.Nil(t, user)
	assert.ErrorIs(t, err, ErrNotFound)

	deleted, err := repo.DeleteNonSuperuser(context.Background(), "not-a-uuid")
	assert.False(t, deleted)
	assert.ErrorIs(t, err, ErrNotFound)
}
