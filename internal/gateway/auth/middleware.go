package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/innerpeace-app/gateway/pkg/httpx"
	"github.com/innerpeace-app/gateway/pkg/jwtx"
	"github.com/innerpeace-app/gateway/pkg/slogx"
)

// Set by the upstream gateway after it has verified the caller itself.
const gatewayUserInfoHeader = "X-Endpoint-Api-Userinfo"

type ctxKey struct{}

// ContextWithIdentity attaches the identity to a request context.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFromContext returns the identity attached by the middleware, if
// the request was authenticated.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(*Identity)
	return id, ok && id != nil
}

// Require is the enforcing middleware: any failure halts the pipeline with
// a generic 401 before the route handler runs. The response message never
// varies by failure reason; the reason goes to the server log only.
func Require(a *Authenticator) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := authenticateRequest(a, r)
			if err != nil {
				slogx.FromContext(r.Context()).Warn("authentication rejected", "err", err)
				httpx.WriteError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
		})
	}
}

// Maybe is the best-effort middleware for routes that can serve anonymous
// callers but want to log who showed up: any failure silently yields no
// identity and the pipeline continues.
func Maybe(a *Authenticator) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := authenticateRequest(a, r)
			if err != nil {
				slogx.FromContext(r.Context()).Debug("optional auth skipped", "err", err)
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
		})
	}
}

func authenticateRequest(a *Authenticator, r *http.Request) (*Identity, error) {
	// Trusted-gateway path: the gateway already verified the caller and
	// forwards the claims. Opt-in, because it is only safe when public
	// clients cannot reach this service with that header set.
	if a.cfg.TrustGatewayUserInfo {
		if blob := r.Header.Get(gatewayUserInfoHeader); blob != "" {
			return identityFromGatewayBlob(blob)
		}
	}

	cred := ReadCredential(r)
	if cred == nil {
		return nil, ErrNoCredential
	}

	slogx.FromContext(r.Context()).Debug("credential read",
		"source", cred.Source,
		"token_suffix", MaskToken(cred.Token),
	)

	return a.Authenticate(r.Context(), cred)
}

// identityFromGatewayBlob decodes the base64 claims blob the gateway
// forwards. No signature check happens here; the trust decision was made
// by whoever enabled TrustGatewayUserInfo.
func identityFromGatewayBlob(blob string) (*Identity, error) {
	raw, err := decodeBase64Loose(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: gateway userinfo: %w", ErrVerification, err)
	}

	var claims jwtx.Claims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return nil, fmt.Errorf("%w: gateway userinfo: %w", ErrVerification, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: %w", ErrVerification, jwtx.ErrMissingSubject)
	}

	provider := ProviderFirstParty
	switch {
	case issuerIsGoogle(claims.Issuer):
		provider = ProviderGoogle
	case claims.Issuer == appleIssuer:
		provider = ProviderApple
	}

	return newIdentity(provider, &claims), nil
}

// decodeBase64Loose accepts both URL-safe and standard alphabets, padded or
// not, since gateways disagree on which they emit.
func decodeBase64Loose(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.RawURLEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.StdEncoding,
	} {
		if raw, err := enc.DecodeString(s); err == nil {
			return raw, nil
		}
	}
	return nil, fmt.Errorf("auth: invalid base64 payload")
}
