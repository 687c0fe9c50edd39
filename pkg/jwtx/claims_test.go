package jwtx_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/innerpeace-app/gateway/pkg/jwtx"
)

func signHS256(t *testing.T, secret []byte, claims jwtx.Claims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return token
}

func TestValidateIssuerAcceptsAnyOfSeveral(t *testing.T) {
	c := jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "accounts.google.com"},
	}

	require.NoError(t, c.ValidateIssuer("https://accounts.google.com", "accounts.google.com"))
	require.ErrorIs(t, c.ValidateIssuer("https://appleid.apple.com"), jwtx.ErrIssuer)
	require.NoError(t, c.ValidateIssuer()) // nothing pinned, nothing enforced
}

func TestValidateAudienceNeedsOneMatch(t *testing.T) {
	c := jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Audience: jwt.ClaimStrings{"innerpeace-app", "innerpeace-web"},
		},
	}

	require.NoError(t, c.ValidateAudience([]string{"innerpeace-app"}))
	require.NoError(t, c.ValidateAudience([]string{"other", "innerpeace-web"}))
	require.ErrorIs(t, c.ValidateAudience([]string{"other"}), jwtx.ErrAudience)
	require.NoError(t, c.ValidateAudience(nil))
}

func TestValidateExpiryHonorsLeeway(t *testing.T) {
	now := time.Now().UTC()

	expired := jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(-30 * time.Second)),
		},
	}
	require.ErrorIs(t, expired.ValidateExpiry(0), jwtx.ErrExpired)
	require.NoError(t, expired.ValidateExpiry(time.Minute))

	future := jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			NotBefore: jwt.NewNumericDate(now.Add(30 * time.Second)),
		},
	}
	require.ErrorIs(t, future.ValidateExpiry(0), jwtx.ErrNotYetValid)
	require.NoError(t, future.ValidateExpiry(time.Minute))
}

func TestNewAppClaimsOmitsEmptyOptionalClaims(t *testing.T) {
	now := time.Now().UTC()

	c := jwtx.NewAppClaims("sub-1", "", "", nil, time.Hour, "iss", []string{"aud"}, now)
	require.Nil(t, c.Email)
	require.Nil(t, c.Roles)
	require.Equal(t, "sub-1", c.Subject)
	require.Equal(t, now.Add(time.Hour).Unix(), c.ExpiresAt.Unix())

	full := jwtx.NewAppClaims("sub-2", "a@b.c", "apple", []string{"admin"}, time.Hour, "iss", []string{"aud"}, now)
	require.Equal(t, "a@b.c", full.Email)
	require.Equal(t, []string{"admin"}, full.Roles)
	require.Equal(t, "apple", full.Provider)
}
