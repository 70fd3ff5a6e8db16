package taskboard

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestAuthServiceRegisterLogin(t *testing.T) {
	ctx := context.Background()
	auth := NewAuthService(NewMemoryUserStore(), NewAuthGateWithDefaults([]byte("test-key")))

	user, token, err := auth.Register(ctx, "Alex@Example.com", "hunter2")
	assert.Equal(t, nil, err)
	assert.NotEqual(t, "", token)
	// emails are stored lowercase
	assert.Equal(t, "alex@example.com", user.Email)
	// the password is never stored in the clear
	assert.NotEqual(t, "hunter2", user.PasswordHash)

	claims, err := auth.Verify(token)
	assert.Equal(t, nil, err)
	assert.Equal(t, user.Id, claims.UserId)

	// registering the same email again is a conflict
	_, _, err = auth.Register(ctx, "alex@example.com", "hunter2")
	assert.Equal(t, true, errors.Is(err, ErrConflict))

	loggedIn, loginToken, err := auth.Login(ctx, "alex@example.com", "hunter2")
	assert.Equal(t, nil, err)
	assert.Equal(t, user.Id, loggedIn.Id)
	assert.NotEqual(t, "", loginToken)

	_, _, err = auth.Login(ctx, "alex@example.com", "wrong")
	assert.Equal(t, true, errors.Is(err, ErrNotFound))

	_, _, err = auth.Login(ctx, "nobody@example.com", "hunter2")
	assert.Equal(t, true, errors.Is(err, ErrNotFound))

	_, _, err = auth.Register(ctx, "", "")
	assert.Equal(t, true, IsValidationError(err))
}
