package router

import (
	"net/http"

	"github.com/dtroode/journal-exchange/internal/api/http/handler"
	"github.com/dtroode/journal-exchange/internal/api/http/middleware"
	"github.com/dtroode/journal-exchange/internal/logger"
	"github.com/dtroode/journal-exchange/internal/service"
)

// Router wires the federation endpoints onto a ServeMux.
type Router struct {
	federation *service.Federation
	tokens     *service.TokenService
	logger     *logger.Logger
}

// New creates a Router.
func New(federation *service.Federation, tokens *service.TokenService, logger *logger.Logger) *Router {
	return &Router{federation: federation, tokens: tokens, logger: logger}
}

// Register builds the HTTP handler with request logging around every route.
func (r *Router) Register() http.Handler {
	mux := http.NewServeMux()
	r.registerSSORoutes(mux)
	r.registerFederationRoutes(mux)

	return middleware.NewLogging(r.logger).HandleHTTP(mux)
}

func (r *Router) registerSSORoutes(mux *http.ServeMux) {
	sso := handler.NewSSO(r.federation, r.tokens, r.logger)

	mux.HandleFunc("POST /federation/sso/verify", sso.Verify)
	mux.HandleFunc("GET /federation/sso/authorize", sso.Authorize)
	mux.HandleFunc("GET /federation/sso/begin", sso.Begin)
	mux.HandleFunc("GET /federation/sso/callback", sso.Callback)
}

func (r *Router) registerFederationRoutes(mux *http.ServeMux) {
	fed := handler.NewFederation(r.federation, r.logger)
	bearer := middleware.NewBearerAuthenticator(r.tokens, r.logger)

	mux.HandleFunc("GET /federation/users/{id}", fed.User)
	mux.Handle("GET /federation/submissions/{id}", bearer.RequireExport(http.HandlerFunc(fed.SubmissionArchive)))
	mux.Handle("GET /federation/submissions/{id}/metadata", bearer.RequireExport(http.HandlerFunc(fed.SubmissionMetadata)))
	mux.HandleFunc("POST /federation/submissions/import", fed.Import)
}
