package http

import (
	"net/http"

	"github.com/innerpeace-app/gateway/internal/gateway/auth"
	"github.com/innerpeace-app/gateway/pkg/httpx"
	"github.com/innerpeace-app/gateway/pkg/jwtx"
)

// JWKSHandler exposes the app-token public key so other systems can verify
// tokens this gateway mints. Unconfigured signing material is a server
// error, not an empty key set.
func JWKSHandler(minter *auth.Minter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if minter == nil {
			httpx.WriteError(w, http.StatusInternalServerError, "JWKS unavailable")
			return
		}

		jwk := minter.PublicJWK()
		if jwk.Kid == "" {
			httpx.WriteError(w, http.StatusInternalServerError, "JWKS unavailable")
			return
		}

		httpx.WriteJSON(w, http.StatusOK, jwtx.JWKS{Keys: []jwtx.JWK{jwk}})
	}
}
