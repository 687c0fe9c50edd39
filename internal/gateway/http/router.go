package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/innerpeace-app/gateway/internal/gateway/auth"
	"github.com/innerpeace-app/gateway/internal/gateway/calendar"
	"github.com/innerpeace-app/gateway/internal/gateway/drive"
	"github.com/innerpeace-app/gateway/pkg/httpx"
	"github.com/innerpeace-app/gateway/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	authenticator *auth.Authenticator
	minter        *auth.Minter
	drive         *drive.Client
	calendar      *calendar.Client

	mediaFolderID string
	buildVersion  string
	startTime     time.Time
	logger        *slog.Logger
}

func NewRouter(
	authenticator *auth.Authenticator,
	minter *auth.Minter,
	driveClient *drive.Client,
	calendarClient *calendar.Client,
	mediaFolderID, buildVersion string,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:           http.NewServeMux(),
		authenticator: authenticator,
		minter:        minter,
		drive:         driveClient,
		calendar:      calendarClient,
		mediaFolderID: mediaFolderID,
		buildVersion:  buildVersion,
		startTime:     time.Now(),
		logger:        logger,
	}

	// Global middleware chain: request logging wraps everything.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerMedia()
	r.registerBookings()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// rateLimitByCaller keys on the authenticated user when there is one,
// falling back to client IP.
func rateLimitByCaller(cfg httpx.RateLimitConfig) httpx.Middleware {
	return httpx.RateLimitMiddleware(cfg, httpx.CompositeKeyExtractor(":",
		func(req *http.Request) string {
			if id, ok := auth.IdentityFromContext(req.Context()); ok {
				return id.UserID
			}
			return ""
		},
		httpx.IPKeyExtractor,
	))
}

func (r *Router) registerAuth() {
	// POST /v1/auth/mint - strict limit, this endpoint hands out
	// credentials.
	mintHandler := &MintHandler{Minter: r.minter}
	r.Mux.Handle("POST /v1/auth/mint",
		httpx.Chain(mintHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// GET /.well-known/jwks.json - public key discovery.
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.minter),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerMedia() {
	h := &MediaHandler{Drive: r.drive, FolderID: r.mediaFolderID}

	r.Mux.Handle("GET /v1/media/list",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			auth.Require(r.authenticator),
			rateLimitByCaller(httpx.LenientLimit),
		),
	)

	// GET streams bytes, HEAD answers the probe some players send first.
	stream := httpx.Chain(http.HandlerFunc(h.HandleStream),
		auth.Require(r.authenticator),
		rateLimitByCaller(httpx.LenientLimit),
	)
	r.Mux.Handle("GET /v1/media/stream/{fileID}", stream)
	r.Mux.Handle("HEAD /v1/media/stream/{fileID}", stream)
}

func (r *Router) registerBookings() {
	h := &BookingsHandler{Calendar: r.calendar}

	r.Mux.Handle("GET /v1/bookings",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			auth.Require(r.authenticator),
			rateLimitByCaller(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("POST /v1/bookings",
		httpx.Chain(http.HandlerFunc(h.HandleCreate),
			auth.Require(r.authenticator),
			rateLimitByCaller(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("DELETE /v1/bookings/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleCancel),
			auth.Require(r.authenticator),
			rateLimitByCaller(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/availability",
		httpx.Chain(http.HandlerFunc(h.HandleAvailability),
			auth.Require(r.authenticator),
			rateLimitByCaller(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.minter))
}
