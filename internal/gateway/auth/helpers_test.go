package auth_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/innerpeace-app/gateway/pkg/jwtx"
)

func genES256Key(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func genRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func genES256PEM(t *testing.T) []byte {
	t.Helper()

	der, err := x509.MarshalPKCS8PrivateKey(genES256Key(t))
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

// signProviderToken signs claims with kid set, mimicking a federated
// provider whose public key is served by a JWKS endpoint.
func signProviderToken(t *testing.T, key any, method jwt.SigningMethod, kid string, claims jwt.Claims) string {
	t.Helper()

	tok := jwt.NewWithClaims(method, claims)
	tok.Header["kid"] = kid

	signed, err := tok.SignedString(key)
	require.NoError(t, err)
	return signed
}

// serveJWKS publishes the given keys on a test server.
func serveJWKS(t *testing.T, keys ...jwtx.JWK) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwtx.JWKS{Keys: keys})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func providerClaims(issuer, subject, audience string, email any) jwt.MapClaims {
	return jwt.MapClaims{
		"iss":   issuer,
		"sub":   subject,
		"aud":   audience,
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	}
}
