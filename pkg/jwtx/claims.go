package jwtx

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAppTokenTTL is the default lifetime for minted app tokens.
const DefaultAppTokenTTL = time.Hour

// Claims are the token claims the gateway cares about. Identity providers
// disagree on claim shapes, so the custom fields stay loose here and get
// normalized into an identity record after verification.
type Claims struct {
	jwt.RegisteredClaims

	// Email as asserted by the identity provider. Untyped because a bad
	// email shape must not fail token parsing, only normalization.
	Email any `json:"email,omitempty"`

	// Provider tag carried in first-party tokens ("google", "apple", ...).
	Provider string `json:"provider,omitempty"`

	// Roles is left untyped: providers send an array of strings, a single
	// comma-separated string, or nothing at all.
	Roles any `json:"roles,omitempty"`
}

// NewAppClaims builds minimally-correct claims for a minted app token.
func NewAppClaims(
	subject, email, provider string,
	roles []string,
	ttl time.Duration,
	issuer string,
	audience []string,
	now time.Time,
) Claims {
	c := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Provider: provider,
	}
	if email != "" {
		c.Email = email
	}
	if len(roles) > 0 {
		c.Roles = roles
	}
	return c
}

// ValidateIssuer checks the issuer against the accepted set.
func (c *Claims) ValidateIssuer(expected ...string) error {
	if len(expected) == 0 {
		return nil // nothing to enforce
	}

	if slices.Contains(expected, c.Issuer) {
		return nil
	}

	return ErrIssuer
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil // nothing to enforce
	}

	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}

	return ErrAudience
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't used
// before nbf, with a grace period for clock skew.
func (c *Claims) ValidateExpiry(leeway time.Duration) error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}

	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}

	return nil
}

// validate runs the common claim checks shared by every verifier.
func (c *Claims) validate(opts VerifyOptions) error {
	if err := c.ValidateIssuer(opts.Issuers...); err != nil {
		return err
	}
	if err := c.ValidateAudience(opts.Audiences); err != nil {
		return err
	}
	return c.ValidateExpiry(opts.Leeway)
}
