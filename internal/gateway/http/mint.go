package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/innerpeace-app/gateway/internal/gateway/auth"
	"github.com/innerpeace-app/gateway/pkg/httpx"
	"github.com/innerpeace-app/gateway/pkg/slogx"
)

// MintHandler issues first-party app tokens.
type MintHandler struct {
	Minter *auth.Minter
}

// mintRequest keeps the optional fields raw so a present-but-wrong-typed
// value is a 400, distinct from the field being absent.
type mintRequest struct {
	Sub      string          `json:"sub"`
	Email    string          `json:"email"`
	Provider string          `json:"provider"`
	Roles    json.RawMessage `json:"roles"`
	TTLSec   json.RawMessage `json:"ttlSec"`
}

type mintResponse struct {
	Token string `json:"token"`
}

func (h *MintHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	if h.Minter == nil {
		httpx.WriteError(w, http.StatusInternalServerError, "Failed to mint JWT")
		return
	}

	var req mintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Sub == "" {
		httpx.WriteError(w, http.StatusBadRequest, "sub required")
		return
	}

	var ttl time.Duration
	if len(req.TTLSec) > 0 {
		var ttlSec float64
		if err := json.Unmarshal(req.TTLSec, &ttlSec); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "ttlSec must be a number")
			return
		}
		ttl = time.Duration(ttlSec) * time.Second
	}

	var roles []string
	if len(req.Roles) > 0 {
		if err := json.Unmarshal(req.Roles, &roles); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "roles must be an array of strings")
			return
		}
	}

	token, err := h.Minter.Mint(auth.MintRequest{
		Subject:  req.Sub,
		Email:    req.Email,
		Provider: req.Provider,
		Roles:    roles,
		TTL:      ttl,
	})
	if err != nil {
		if errors.Is(err, auth.ErrSubjectRequired) {
			httpx.WriteError(w, http.StatusBadRequest, "sub required")
			return
		}
		log.Error("token mint failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "Failed to mint JWT")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, mintResponse{Token: token})
}
