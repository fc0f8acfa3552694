package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juanxtache-cmyk/gameorki-backend/auth"
)

func TestHashPassword(t *testing.T) {
	hash, err := auth.HashPassword("sup3r-secret")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, "sup3r-secret", hash)

	// same input never yields the same hash
	other, err := auth.HashPassword("sup3r-secret")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other)
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	_, err := auth.HashPassword("")
	assert.ErrorIs(t, err, auth.ErrNoEmptyString)
}

func TestComparePasswordAndHash(t *testing.T) {
	hash, err := auth.HashPassword("sup3r-secret")
	require.NoError(t, err)

	assert.NoError(t, auth.ComparePasswordAndHash("sup3r-secret", hash))
	assert.ErrorIs(t, auth.ComparePasswordAndHash("wrong", hash), auth.ErrMismatchedHashAndPassword)
	assert.Error(t, auth.ComparePasswordAndHash("sup3r-secret", "not-a-hash"))
}
