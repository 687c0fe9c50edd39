package auth

import "errors"

// Internal failure taxonomy. These are logged server-side with their real
// cause; clients only ever see the one generic 401 so the middleware can't
// be used as an oracle for which check failed.
var (
	ErrNoCredential    = errors.New("auth: no credential presented")
	ErrProviderUnknown = errors.New("auth: provider not recognized")
	ErrNotConfigured   = errors.New("auth: provider verification not configured")
	ErrVerification    = errors.New("auth: token verification failed")
)
