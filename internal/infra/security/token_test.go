package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("s3cret", "rentalcore")

	token, err := m.Issue("owner-1", RoleAdmin)
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", claims.Subject)
	assert.True(t, claims.HasRole("ADMIN"))
	assert.False(t, claims.HasRole("support"))
}

func TestValidateRejects(t *testing.T) {
	m := NewTokenManager("s3cret", "rentalcore")
	token, err := m.Issue("renter-1")
	require.NoError(t, err)

	_, err = NewTokenManager("other", "rentalcore").Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewTokenManager("s3cret", "someone-else").Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Validate("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateExpired(t *testing.T) {
	m := NewTokenManager("s3cret", "rentalcore").WithTTL(time.Minute)
	m.now = func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC) }
	token, err := m.Issue("renter-1")
	require.NoError(t, err)

	m.now = func() time.Time { return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC) }
	_, err = m.Validate(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestUnconfigured(t *testing.T) {
	m := NewTokenManager("", "")
	assert.False(t, m.Configured())
	_, err := m.Issue("x")
	assert.ErrorIs(t, err, ErrNoSecret)
}
