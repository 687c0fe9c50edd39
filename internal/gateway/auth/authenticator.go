package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/innerpeace-app/gateway/pkg/jwtx"
)

// Published JWKS endpoints for the asymmetric providers.
const (
	DefaultGoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
	DefaultAppleJWKSURL  = "https://appleid.apple.com/auth/keys"
)

const defaultLeeway = 60 * time.Second

// Config holds the trust configuration for every provider the gateway
// accepts tokens from. A provider whose material or audience pins are
// absent fails closed: its tokens are rejected, never waved through.
type Config struct {
	// First-party session tokens (HS256, shared secret with the identity
	// backend) and minted app tokens (asymmetric, public JWK below).
	FirstPartyIssuer    string
	FirstPartyAudiences []string
	FirstPartySecret    string
	FirstPartyJWK       string // JSON-encoded public JWK for app tokens

	GoogleAudiences []string
	AppleAudiences  []string

	// JWKS endpoint overrides, for tests. Empty means the real provider.
	GoogleJWKSURL string
	AppleJWKSURL  string

	// KeySetTTL bounds how long fetched provider keys are considered
	// fresh. Zero means jwtx.DefaultRemoteTTL.
	KeySetTTL time.Duration

	// Leeway for exp/nbf clock skew. Zero means 60s.
	Leeway time.Duration

	// TrustGatewayUserInfo accepts the upstream gateway's pre-verified
	// user-info header without re-verifying a signature. Only safe when
	// the network topology guarantees public clients cannot set that
	// header; leave off unless the deployment enforces that.
	TrustGatewayUserInfo bool

	// HTTPClient used for JWKS fetches. Nil means http.DefaultClient.
	HTTPClient *http.Client
}

// Authenticator runs the full verification flow for one credential:
// classify, resolve key material, verify, normalize. One instance is shared
// by all requests; the remote key sets are its only mutable state.
type Authenticator struct {
	cfg Config

	firstHS jwtx.Verifier // nil when no shared secret configured
	firstRS jwtx.Verifier // nil when no public JWK configured
	firstES jwtx.Verifier
	google  jwtx.Verifier
	apple   jwtx.Verifier
}

// New builds an Authenticator from config. Providers with missing material
// are left unconfigured and will reject at authentication time.
func New(cfg Config) (*Authenticator, error) {
	if cfg.Leeway <= 0 {
		cfg.Leeway = defaultLeeway
	}

	a := &Authenticator{cfg: cfg}

	firstOpts := jwtx.VerifyOptions{
		Issuers:   []string{cfg.FirstPartyIssuer},
		Audiences: cfg.FirstPartyAudiences,
		Leeway:    cfg.Leeway,
	}

	if cfg.FirstPartySecret != "" {
		hs, err := jwtx.NewVerifierHS256([]byte(cfg.FirstPartySecret), firstOpts)
		if err != nil {
			return nil, fmt.Errorf("auth: first-party secret: %w", err)
		}
		a.firstHS = hs
	}

	if cfg.FirstPartyJWK != "" {
		var jwk jwtx.JWK
		if err := json.Unmarshal([]byte(cfg.FirstPartyJWK), &jwk); err != nil {
			return nil, fmt.Errorf("auth: first-party JWK: %w", err)
		}
		keys := jwtx.NewKeySet()
		if err := keys.AddJWK(jwk); err != nil {
			return nil, fmt.Errorf("auth: first-party JWK: %w", err)
		}
		a.firstRS = jwtx.NewVerifierRS256(keys, firstOpts)
		a.firstES = jwtx.NewVerifierES256(keys, firstOpts)
	}

	if len(cfg.GoogleAudiences) > 0 {
		url := cfg.GoogleJWKSURL
		if url == "" {
			url = DefaultGoogleJWKSURL
		}
		a.google = jwtx.NewVerifierRS256(
			jwtx.NewRemoteKeySet(url, cfg.KeySetTTL, cfg.HTTPClient),
			jwtx.VerifyOptions{
				Issuers:   googleIssuers,
				Audiences: cfg.GoogleAudiences,
				Leeway:    cfg.Leeway,
			},
		)
	}

	if len(cfg.AppleAudiences) > 0 {
		url := cfg.AppleJWKSURL
		if url == "" {
			url = DefaultAppleJWKSURL
		}
		a.apple = jwtx.NewVerifierRS256(
			jwtx.NewRemoteKeySet(url, cfg.KeySetTTL, cfg.HTTPClient),
			jwtx.VerifyOptions{
				Issuers:   []string{appleIssuer},
				Audiences: cfg.AppleAudiences,
				Leeway:    cfg.Leeway,
			},
		)
	}

	return a, nil
}

// Authenticate verifies a raw credential end-to-end and returns the
// normalized identity. Every failure mode wraps ErrVerification (or one of
// the narrower sentinels); callers must not surface the distinction to
// clients.
func (a *Authenticator) Authenticate(ctx context.Context, cred *RawCredential) (*Identity, error) {
	if cred == nil || cred.Token == "" {
		return nil, ErrNoCredential
	}

	shape, err := peek(cred.Token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerification, err)
	}

	// A hint picks the verifier to run; it cannot reclassify a token into
	// trust. A contradicting hint just runs a verifier the token can't
	// satisfy and fails below.
	provider := cred.Hint
	if provider == "" {
		provider, err = classify(shape, a.cfg.FirstPartyIssuer)
		if err != nil {
			return nil, err
		}
	}

	var claims *jwtx.Claims
	switch provider {
	case ProviderFirstParty:
		claims, err = a.verifyFirstParty(ctx, cred.Token, shape.alg)
	case ProviderGoogle:
		claims, err = a.verifyWith(ctx, a.google, cred.Token)
	case ProviderApple:
		claims, err = a.verifyWith(ctx, a.apple, cred.Token)
	default:
		return nil, ErrProviderUnknown
	}
	if err != nil {
		return nil, err
	}

	// A signed-but-subjectless token is still not trusted.
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: %w", ErrVerification, jwtx.ErrMissingSubject)
	}

	return newIdentity(provider, claims), nil
}

// verifyFirstParty routes between the shared-secret and asymmetric
// first-party verifiers based on the token's (unverified) algorithm. The
// algorithm is then enforced again inside the chosen verifier.
func (a *Authenticator) verifyFirstParty(ctx context.Context, token, alg string) (*jwtx.Claims, error) {
	switch alg {
	case jwt.SigningMethodHS256.Alg():
		return a.verifyWith(ctx, a.firstHS, token)
	case jwt.SigningMethodRS256.Alg():
		return a.verifyWith(ctx, a.firstRS, token)
	case jwt.SigningMethodES256.Alg():
		return a.verifyWith(ctx, a.firstES, token)
	default:
		return nil, fmt.Errorf("%w: unsupported first-party alg %q", ErrVerification, alg)
	}
}

func (a *Authenticator) verifyWith(ctx context.Context, v jwtx.Verifier, token string) (*jwtx.Claims, error) {
	if v == nil {
		return nil, ErrNotConfigured
	}
	claims, err := v.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerification, err)
	}
	return claims, nil
}
