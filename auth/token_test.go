package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/daily-reflections/auth"
)

const secret = "test-secret-with-enough-bytes-0123456789"

func TestIssueThenAuthenticate(t *testing.T) {
	tm := auth.NewTokenManager(secret, "daily-reflections", time.Hour)

	token, expiresAt, err := tm.Issue("user-123")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	userID, err := tm.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)
}

func TestAuthenticate_Rejects(t *testing.T) {
	tm := auth.NewTokenManager(secret, "daily-reflections", time.Hour)
	good, _, err := tm.Issue("user-123")
	require.NoError(t, err)

	otherSecret, _, err := auth.NewTokenManager("a-different-secret-0123456789", "daily-reflections", time.Hour).Issue("user-123")
	require.NoError(t, err)

	otherIssuer, _, err := auth.NewTokenManager(secret, "someone-else", time.Hour).Issue("user-123")
	require.NoError(t, err)

	past := func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := tm.WithClock(past).Issue("user-123")
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, auth.Claims{
		UserID: "user-123",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "daily-reflections",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	// Swap in another user's payload under the original signature.
	other, _, err := tm.Issue("user-999")
	require.NoError(t, err)
	goodParts, otherParts := strings.Split(good, "."), strings.Split(other, ".")
	tampered := goodParts[0] + "." + otherParts[1] + "." + goodParts[2]

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not.a.jwt",
		"tampered":     tampered,
		"wrong secret": otherSecret,
		"wrong issuer": otherIssuer,
		"expired":      expired,
		"alg none":     unsigned,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tm.Authenticate(token)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}

func TestAuthenticate_FallsBackToSubject(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "sub-user",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	userID, err := auth.NewTokenManager(secret, "", time.Hour).Authenticate(signed)
	require.NoError(t, err)
	assert.Equal(t, "sub-user", userID)
}

func TestAuthenticate_RequiresExpiry(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{UserID: "forever"})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	_, err = auth.NewTokenManager(secret, "", time.Hour).Authenticate(signed)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestIssue_RequiresUser(t *testing.T) {
	_, _, err := auth.NewTokenManager(secret, "", time.Hour).Issue("")
	assert.Error(t, err)
}
