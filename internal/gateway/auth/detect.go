package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer strings the known providers put in their tokens. Google has
// historically published both forms.
var googleIssuers = []string{"https://accounts.google.com", "accounts.google.com"}

const appleIssuer = "https://appleid.apple.com"

// tokenShape is what an unverified decode tells us: enough to classify,
// never enough to trust.
type tokenShape struct {
	alg    string
	issuer string
}

// peek decodes the token without verifying it. Classification uses only
// the signing algorithm family and the issuer claim, neither of which the
// caller can use to gain trust: the chosen verifier still checks the
// signature end-to-end.
func peek(token string) (tokenShape, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, &jwt.RegisteredClaims{})
	if err != nil {
		return tokenShape{}, fmt.Errorf("auth: decode token: %w", err)
	}

	issuer, _ := parsed.Claims.GetIssuer()

	return tokenShape{
		alg:    parsed.Method.Alg(),
		issuer: issuer,
	}, nil
}

// Detect classifies a raw token into a Provider using only its unverified
// structure. A symmetric algorithm can only have been signed by the
// first-party backend; asymmetric tokens are classified by issuer against
// the fixed allow-list. Unrecognized tokens fail classification outright.
func Detect(token, firstPartyIssuer string) (Provider, error) {
	shape, err := peek(token)
	if err != nil {
		return "", err
	}
	return classify(shape, firstPartyIssuer)
}

func classify(shape tokenShape, firstPartyIssuer string) (Provider, error) {
	if strings.HasPrefix(shape.alg, "HS") {
		return ProviderFirstParty, nil
	}

	switch {
	case issuerIsGoogle(shape.issuer):
		return ProviderGoogle, nil
	case shape.issuer == appleIssuer:
		return ProviderApple, nil
	case firstPartyIssuer != "" && shape.issuer == firstPartyIssuer:
		return ProviderFirstParty, nil
	}

	return "", fmt.Errorf("auth: unrecognized token issuer %q: %w", shape.issuer, ErrProviderUnknown)
}

func issuerIsGoogle(issuer string) bool {
	for _, iss := range googleIssuers {
		if issuer == iss {
			return true
		}
	}
	return false
}
