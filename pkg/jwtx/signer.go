package jwtx

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	PublicJWK() JWK
}

// NewSignerFromPEM inspects a PEM-encoded private key and returns the
// matching signer: ES256 for ECDSA P-256 keys, RS256 for RSA keys. Callers
// configure one private key and the algorithm follows from it.
func NewSignerFromPEM(kid string, pemKey []byte) (Signer, error) {
	key, err := parsePrivateKeyPEM(pemKey)
	if err != nil {
		return nil, err
	}

	switch k := key.(type) {
	case *ecdsa.PrivateKey:
		return newES256Signer(kid, k)
	case *rsa.PrivateKey:
		return newRS256Signer(kid, k), nil
	default:
		return nil, fmt.Errorf("jwtx: unsupported private key type %T", key)
	}
}

// parsePrivateKeyPEM handles PKCS8, PKCS1 (RSA), and SEC1 (EC) encodings,
// because key material arrives in whatever shape the operator exported it.
func parsePrivateKeyPEM(pemKey []byte) (any, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM for private key")
	}

	switch block.Type {
	case "PRIVATE KEY":
		return x509.ParsePKCS8PrivateKey(block.Bytes)
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	default:
		return nil, fmt.Errorf("jwtx: unsupported PEM type %q", block.Type)
	}
}
