package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner_AccessRoundTrip(t *testing.T) {
	s := NewSigner("access-secret", "refresh-secret", 15, 7)

	token, err := s.AccessToken("user-1", "budi", "teller")
	require.NoError(t, err)

	claims, err := s.ParseAccess(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "budi", claims.Username)
	assert.Equal(t, "teller", claims.Role)
	assert.Equal(t, "coop-ledger", claims.Issuer)
}

func TestSigner_SecretsAreNotInterchangeable(t *testing.T) {
	s := NewSigner("access-secret", "refresh-secret", 15, 7)

	refresh, err := s.RefreshToken("user-1", "tok-1")
	require.NoError(t, err)

	_, err = s.ParseAccess(refresh)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	claims, err := s.ParseRefresh(refresh)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", claims.TokenID)
}

func TestSigner_Expired(t *testing.T) {
	s := NewSigner("a", "r", 15, 7)
	issued := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return issued }

	token, err := s.AccessToken("user-1", "budi", "member")
	require.NoError(t, err)

	s.Now = func() time.Time { return issued.Add(16 * time.Minute) }
	_, err = s.ParseAccess(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestSigner_Garbage(t *testing.T) {
	s := NewSigner("a", "r", 15, 7)
	_, err := s.ParseAccess("not-a-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
