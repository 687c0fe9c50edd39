package auth

import (
	"errors"
	"time"

	"github.com/innerpeace-app/gateway/pkg/jwtx"
)

// ErrSubjectRequired reports a mint request without a subject.
var ErrSubjectRequired = errors.New("auth: mint requires a non-empty subject")

// MintRequest describes a first-party token to issue.
type MintRequest struct {
	Subject  string
	Email    string
	Provider string
	Roles    []string

	// TTL for the token. Zero means the minter's default.
	TTL time.Duration
}

// Minter issues first-party signed tokens from the server-held private key,
// for when the backend must assert an identity downstream. The signed value
// is returned opaque and never retained.
type Minter struct {
	signer     jwtx.Signer
	issuer     string
	audience   []string
	defaultTTL time.Duration
}

// NewMinter wraps a signer with the issuer/audience pins minted tokens
// carry.
func NewMinter(signer jwtx.Signer, issuer string, audience []string) *Minter {
	return &Minter{
		signer:     signer,
		issuer:     issuer,
		audience:   audience,
		defaultTTL: jwtx.DefaultAppTokenTTL,
	}
}

// Mint signs and returns a token for the request.
func (m *Minter) Mint(req MintRequest) (string, error) {
	if req.Subject == "" {
		return "", ErrSubjectRequired
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	claims := jwtx.NewAppClaims(
		req.Subject, req.Email, req.Provider,
		req.Roles,
		ttl,
		m.issuer, m.audience,
		time.Now().UTC(),
	)

	return m.signer.Sign(claims)
}

// PublicJWK exposes the minting key's public JWK for the discovery
// endpoint.
func (m *Minter) PublicJWK() jwtx.JWK {
	return m.signer.PublicJWK()
}

// KID reports the identifier of the active signing key.
func (m *Minter) KID() string {
	return m.signer.KID()
}
