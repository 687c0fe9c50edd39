package auth

import (
	"net/http"
	"regexp"
	"strings"
)

// Source records which header a credential was read from. The precedence
// order exists because the upstream API gateway rewrites the standard
// Authorization header with its own backend JWT; the forwarded header is
// how the original client credential survives that rewrite.
type Source string

const (
	SourceAppHeader     Source = "x-app-jwt"
	SourceForwardedAuth Source = "x-forwarded-authorization"
	SourceAuthHeader    Source = "authorization"
	SourceGoogleHeader  Source = "x-google-id-token"
	SourceAppleHeader   Source = "x-apple-identity-token"
)

const (
	headerAppJWT        = "X-App-Jwt"
	headerForwardedAuth = "X-Forwarded-Authorization"
	headerAuth          = "Authorization"
	headerGoogleID      = "X-Google-Id-Token"
	headerAppleID       = "X-Apple-Identity-Token"
	headerProviderHint  = "X-Auth-Provider"
)

// RawCredential is a bearer credential extracted from a request, before any
// verification. Built fresh per request, never persisted.
type RawCredential struct {
	Token  string
	Source Source

	// Hint is the caller-supplied provider hint. It only ever picks which
	// verifier runs; trust always comes from the cryptographic checks.
	Hint Provider
}

var bearerRe = regexp.MustCompile(`(?i)^Bearer\s+(.+)$`)

// ReadCredential extracts at most one credential from the request headers,
// by fixed precedence: the dedicated app-JWT header, the forwarded
// authorization header, the standard Authorization header, then the
// provider-specific identity-token headers. Returns nil when nothing
// usable is present.
func ReadCredential(r *http.Request) *RawCredential {
	hint := parseHint(r.Header.Get(headerProviderHint))

	if token := strings.TrimSpace(r.Header.Get(headerAppJWT)); token != "" {
		return &RawCredential{Token: token, Source: SourceAppHeader, Hint: hint}
	}

	if token := extractBearer(r.Header.Get(headerForwardedAuth)); token != "" {
		return &RawCredential{Token: token, Source: SourceForwardedAuth, Hint: hint}
	}

	if token := extractBearer(r.Header.Get(headerAuth)); token != "" {
		return &RawCredential{Token: token, Source: SourceAuthHeader, Hint: hint}
	}

	if token := strings.TrimSpace(r.Header.Get(headerGoogleID)); token != "" {
		return &RawCredential{Token: token, Source: SourceGoogleHeader, Hint: hint}
	}

	if token := strings.TrimSpace(r.Header.Get(headerAppleID)); token != "" {
		return &RawCredential{Token: token, Source: SourceAppleHeader, Hint: hint}
	}

	return nil
}

// extractBearer pulls the token out of a "Bearer <token>" header value.
func extractBearer(value string) string {
	match := bearerRe.FindStringSubmatch(strings.TrimSpace(value))
	if match == nil {
		return ""
	}
	return strings.TrimSpace(match[1])
}

func parseHint(value string) Provider {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "google":
		return ProviderGoogle
	case "apple":
		return ProviderApple
	case "first_party", "app":
		return ProviderFirstParty
	default:
		return ""
	}
}

// MaskToken returns a loggable suffix of a token. Full tokens never reach
// the logs.
func MaskToken(token string) string {
	const keep = 6
	if token == "" {
		return ""
	}
	if len(token) <= keep {
		return "…" + token
	}
	return "…" + token[len(token)-keep:]
}
