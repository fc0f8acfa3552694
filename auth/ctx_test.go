package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juanxtache-cmyk/gameorki-backend/auth"
)

func TestClaimsContextRoundTrip(t *testing.T) {
	claims := &auth.JWTClaims{UID: "u1", Uname: "alice", UserRole: "user"}

	ctx := auth.WithClaimsContext(context.Background(), claims)

	got, ok := auth.GetClaims(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", got.UserID())
	assert.Equal(t, "alice", got.Username())
}

func TestGetClaimsMissing(t *testing.T) {
	_, ok := auth.GetClaims(context.Background())
	assert.False(t, ok)
}
