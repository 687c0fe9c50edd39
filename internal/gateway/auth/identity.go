package auth

import (
	"slices"
	"strings"

	"github.com/innerpeace-app/gateway/pkg/jwtx"
)

// Provider identifies which identity provider issued a credential. The set
// is closed: anything else fails classification.
type Provider string

const (
	ProviderFirstParty Provider = "first_party"
	ProviderGoogle     Provider = "google"
	ProviderApple      Provider = "apple"
)

// Identity is the normalized record attached to a request after successful
// verification. It lives exactly as long as the request.
type Identity struct {
	Provider Provider
	UserID   string
	Email    string // empty when the provider didn't assert one
	Roles    []string
	Claims   *jwtx.Claims
}

// newIdentity maps verified claims into an Identity. This is pure
// normalization: it performs no I/O and cannot fail, because the
// missing-subject case was already rejected during verification.
func newIdentity(provider Provider, claims *jwtx.Claims) *Identity {
	return &Identity{
		Provider: provider,
		UserID:   claims.Subject,
		Email:    normalizeEmail(claims.Email),
		Roles:    NormalizeRoles(claims.Roles),
		Claims:   claims,
	}
}

// NormalizeRoles maps the loose roles claim into a deduplicated string
// slice. An array of strings is used as-is (empty entries dropped), a
// single comma-separated string is split and trimmed, and any other shape
// yields an empty list rather than an error.
func NormalizeRoles(raw any) []string {
	var roles []string

	switch v := raw.(type) {
	case []string:
		for _, role := range v {
			if role != "" {
				roles = append(roles, role)
			}
		}
	case []any:
		// JSON arrays decode as []any; keep only the string entries.
		for _, entry := range v {
			if role, ok := entry.(string); ok && role != "" {
				roles = append(roles, role)
			}
		}
	case string:
		for _, role := range strings.Split(v, ",") {
			if role = strings.TrimSpace(role); role != "" {
				roles = append(roles, role)
			}
		}
	}

	return dedupe(roles)
}

func normalizeEmail(raw any) string {
	if email, ok := raw.(string); ok {
		return email
	}
	return ""
}

func dedupe(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
