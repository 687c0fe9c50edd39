package auth_test

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/innerpeace-app/gateway/internal/gateway/auth"
)

const sessionSecret = "0123456789abcdef0123456789abcdef"

func sessionToken(t *testing.T, subject string) string {
	t.Helper()

	return signProviderToken(t, []byte(sessionSecret), jwt.SigningMethodHS256, "", jwt.MapClaims{
		"iss": testIssuer,
		"sub": subject,
		"aud": "innerpeace-app",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
}

func echoIdentity(t *testing.T, captured **auth.Identity) http.Handler {
	t.Helper()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := auth.IdentityFromContext(r.Context()); ok {
			*captured = id
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAttachesIdentity(t *testing.T) {
	a := firstPartyAuthenticator(t, nil, sessionSecret)

	var captured *auth.Identity
	handler := auth.Require(a)(echoIdentity(t, &captured))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+sessionToken(t, "user-7"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	require.Equal(t, "user-7", captured.UserID)
}

func TestRequireRejectsWithGenericBody(t *testing.T) {
	a := firstPartyAuthenticator(t, nil, sessionSecret)

	handler := auth.Require(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	// The response must not vary by failure reason.
	for name, setup := range map[string]func(*http.Request){
		"no credential": func(r *http.Request) {},
		"garbage token": func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer not.a.jwt")
		},
		"wrong secret": func(r *http.Request) {
			tok := signProviderToken(t, []byte("wrong-secret-wrong-secret-wrong!"), jwt.SigningMethodHS256, "", jwt.MapClaims{
				"iss": testIssuer,
				"sub": "user-1",
				"aud": "innerpeace-app",
				"exp": time.Now().Add(time.Hour).Unix(),
			})
			r.Header.Set("Authorization", "Bearer "+tok)
		},
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			setup(req)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.JSONEq(t, `{"code":401,"message":"Unauthorized"}`, rec.Body.String())
		})
	}
}

func TestMaybeContinuesWithoutIdentity(t *testing.T) {
	a := firstPartyAuthenticator(t, nil, sessionSecret)

	var captured *auth.Identity
	handler := auth.Maybe(a)(echoIdentity(t, &captured))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, captured)
}

func TestMaybeAttachesIdentityWhenPresent(t *testing.T) {
	a := firstPartyAuthenticator(t, nil, sessionSecret)

	var captured *auth.Identity
	handler := auth.Maybe(a)(echoIdentity(t, &captured))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+sessionToken(t, "user-9"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	require.Equal(t, "user-9", captured.UserID)
}

func TestGatewayUserInfoTrustIsOptIn(t *testing.T) {
	blob := func(claims map[string]any) string {
		raw, err := json.Marshal(claims)
		require.NoError(t, err)
		return base64.RawURLEncoding.EncodeToString(raw)
	}

	t.Run("ignored by default", func(t *testing.T) {
		a := firstPartyAuthenticator(t, nil, sessionSecret)

		handler := auth.Require(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Endpoint-Api-Userinfo", blob(map[string]any{"sub": "user-1"}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("accepted when enabled", func(t *testing.T) {
		a, err := auth.New(auth.Config{
			FirstPartyIssuer:     testIssuer,
			FirstPartyAudiences:  testAudiences,
			FirstPartySecret:     sessionSecret,
			TrustGatewayUserInfo: true,
		})
		require.NoError(t, err)

		var captured *auth.Identity
		handler := auth.Require(a)(echoIdentity(t, &captured))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Endpoint-Api-Userinfo", blob(map[string]any{
			"iss":   "https://accounts.google.com",
			"sub":   "gw-user",
			"email": "gw@example.com",
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, captured)
		require.Equal(t, "gw-user", captured.UserID)
		require.Equal(t, auth.ProviderGoogle, captured.Provider)
	})

	t.Run("blob without subject is rejected", func(t *testing.T) {
		a, err := auth.New(auth.Config{
			FirstPartyIssuer:     testIssuer,
			FirstPartyAudiences:  testAudiences,
			FirstPartySecret:     sessionSecret,
			TrustGatewayUserInfo: true,
		})
		require.NoError(t, err)

		handler := auth.Require(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Endpoint-Api-Userinfo", blob(map[string]any{"email": "x@example.com"}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
