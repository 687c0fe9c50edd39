package jwtx

import (
	"context"
	"errors"
	"time"
)

// Verifier validates a JWT and gives you back the claims if it's legit.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// KeyProvider resolves a verification key by key ID. Implemented by the
// static KeySet and by RemoteKeySet, which may hit the network on a miss.
type KeyProvider interface {
	Key(ctx context.Context, kid string) (any, error)
}

// VerifyOptions captures the expectations shared by all verifiers.
type VerifyOptions struct {
	// Issuers the token may have (claims.iss). Some providers publish more
	// than one equivalent issuer string. Empty means "don't care".
	Issuers []string

	// Audience values the token must contain (claims.aud). Empty means
	// "don't care".
	Audiences []string

	// Leeway allows small clock skew when validating exp/nbf.
	Leeway time.Duration
}

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")

	ErrIssuer         = errors.New("jwtx: issuer mismatch")
	ErrAudience       = errors.New("jwtx: audience mismatch")
	ErrExpired        = errors.New("jwtx: token expired")
	ErrNotYetValid    = errors.New("jwtx: token not yet valid")
	ErrMissingSubject = errors.New("jwtx: missing subject claim")
)
