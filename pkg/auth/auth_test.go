package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextSource(t *testing.T) {
	var src ContextSource

	_, err := src.CurrentIdentity(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = src.CurrentIdentity(WithIdentity(context.Background(), Identity{UserID: "  "}))
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	ctx := WithIdentity(context.Background(), Identity{UserID: "u1", Anonymous: true})
	id, err := src.CurrentIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
	assert.True(t, id.Anonymous)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("sleepless1")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("sleepless1", hash))
	assert.False(t, CheckPasswordHash("sleepless2", hash))
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		password string
		ok       bool
	}{
		{"short1", false},
		{"onlyletters", false},
		{"12345678", false},
		{"naptime2024", true},
	}
	for _, tc := range tests {
		err := ValidatePassword(tc.password)
		if tc.ok {
			assert.NoError(t, err, tc.password)
		} else {
			assert.ErrorIs(t, err, ErrWeakPassword, tc.password)
		}
	}
}
