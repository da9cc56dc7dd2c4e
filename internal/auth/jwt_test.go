package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healcoins.app/ledger/internal/common"
)

const testSecret = "0123456789abcdef0123"

func TestIssueAndParse(t *testing.T) {
	tm := NewTokenManager(testSecret, "healcoins")

	token, exp, err := tm.Issue("u1", true, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := tm.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID())
	assert.True(t, claims.Admin)
}

func TestParse_Rejects(t *testing.T) {
	tm := NewTokenManager(testSecret, "healcoins")

	expired, _, err := tm.Issue("u1", false, -time.Minute)
	require.NoError(t, err)

	other := NewTokenManager("another-secret-value!", "healcoins")
	foreign, _, err := other.Issue("u1", true, time.Hour)
	require.NoError(t, err)

	wrongIssuer := NewTokenManager(testSecret, "someone-else")
	alien, _, err := wrongIssuer.Issue("u1", false, time.Hour)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		Admin: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			Issuer:    "healcoins",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":      expired,
		"wrong secret": foreign,
		"wrong issuer": alien,
		"alg none":     none,
		"garbage":      "not-a-token",
	} {
		_, err := tm.Parse(token)
		assert.ErrorIs(t, err, common.ErrUnauthenticated, name)
	}
}

func TestParse_RequiresSubject(t *testing.T) {
	tm := NewTokenManager(testSecret, "healcoins")
	token, _, err := tm.Issue("", false, time.Hour)
	require.NoError(t, err)

	_, err = tm.Parse(token)
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
}
