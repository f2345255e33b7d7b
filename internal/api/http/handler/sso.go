package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/dtroode/journal-exchange/internal/api/http/middleware"
	"github.com/dtroode/journal-exchange/internal/logger"
	"github.com/dtroode/journal-exchange/internal/model"
	"github.com/dtroode/journal-exchange/internal/service"
)

// Cookie names used by the SSO handshake.
const (
	SessionCookie   = "session"
	StateCookie     = "sso_state"
	RemoteCookie    = "sso_remote"
	ssoCookiePath   = "/federation/sso"
	ssoCookieMaxAge = 10 * time.Minute
)

// SSOService runs both sides of the single sign-on handshake.
type SSOService interface {
	BeginSSO(remoteURL string) (string, string, error)
	AuthorizeSSO(identity model.SessionIdentity, state, from string) (string, error)
	CompleteSSO(ctx context.Context, remoteURL, token, expectedState, gotState string) (model.SessionIdentity, string, error)
	VerifySSO(ctx context.Context, token string) (model.SSOVerifyResponse, error)
}

// SessionVerifier resolves session tokens.
type SessionVerifier interface {
	VerifySession(token string) (model.SessionIdentity, error)
}

// SSO handles the single sign-on endpoints.
type SSO struct {
	service  SSOService
	sessions SessionVerifier
	logger   *logger.Logger
}

// NewSSO creates an SSO handler.
func NewSSO(service SSOService, sessions SessionVerifier, logger *logger.Logger) *SSO {
	return &SSO{service: service, sessions: sessions, logger: logger}
}

// Verify answers a peer asking who a handoff token belongs to.
func (h *SSO) Verify(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.VerifySSO(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		h.logger.Info("SSO handler: verification refused",
			"error", err.Error())
		handleError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Begin sends the browser to the remote instance to sign in there.
func (h *SSO) Begin(w http.ResponseWriter, r *http.Request) {
	remote := r.URL.Query().Get("remote")
	if remote == "" {
		writeJSON(w, http.StatusBadRequest, statusBody{Status: "missing_remote"})
		return
	}

	redirect, state, err := h.service.BeginSSO(remote)
	if err != nil {
		h.logger.Warn("SSO handler: login not started",
			"remote", remote,
			"error", err.Error())
		handleError(w, h.logger, err)
		return
	}

	h.setCookie(w, r, StateCookie, state, ssoCookiePath, ssoCookieMaxAge)
	h.setCookie(w, r, RemoteCookie, remote, ssoCookiePath, ssoCookieMaxAge)
	http.Redirect(w, r, redirect, http.StatusFound)
}

// Authorize hands the signed-in user over to the instance that asked.
func (h *SSO) Authorize(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.session(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, statusBody{Status: "login_required"})
		return
	}

	query := r.URL.Query()
	redirect, err := h.service.AuthorizeSSO(identity, query.Get("state"), query.Get("from"))
	if err != nil {
		h.logger.Warn("SSO handler: handoff refused",
			"from", query.Get("from"),
			"error", err.Error())
		writeJSON(w, http.StatusBadRequest, statusBody{Status: "sso_refused"})
		return
	}

	http.Redirect(w, r, redirect, http.StatusFound)
}

// Callback completes a login started by Begin.
func (h *SSO) Callback(w http.ResponseWriter, r *http.Request) {
	stateCookie, stateErr := r.Cookie(StateCookie)
	remoteCookie, remoteErr := r.Cookie(RemoteCookie)
	if stateErr != nil || remoteErr != nil {
		writeJSON(w, http.StatusUnauthorized, statusBody{Status: "sso_failed"})
		return
	}

	query := r.URL.Query()
	identity, session, err := h.service.CompleteSSO(r.Context(), remoteCookie.Value, query.Get("token"), stateCookie.Value, query.Get("state"))

	h.setCookie(w, r, StateCookie, "", ssoCookiePath, -1)
	h.setCookie(w, r, RemoteCookie, "", ssoCookiePath, -1)

	if err != nil {
		h.logger.Warn("SSO handler: login failed",
			"remote", remoteCookie.Value,
			"error", err.Error())
		writeJSON(w, http.StatusUnauthorized, statusBody{Status: "sso_failed"})
		return
	}

	h.setCookie(w, r, SessionCookie, session, "/", service.SessionTTL)
	writeJSON(w, http.StatusOK, identity)
}

// session reads the caller's session from a bearer header or the session cookie.
func (h *SSO) session(r *http.Request) (model.SessionIdentity, bool) {
	token, ok := middleware.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		cookie, err := r.Cookie(SessionCookie)
		if err != nil || cookie.Value == "" {
			return model.SessionIdentity{}, false
		}
		token = cookie.Value
	}

	identity, err := h.sessions.VerifySession(token)
	if err != nil {
		h.logger.Debug("SSO handler: session rejected",
			"error", err.Error())
		return model.SessionIdentity{}, false
	}
	return identity, true
}

// setCookie writes an HttpOnly cookie; a negative maxAge deletes it.
func (h *SSO) setCookie(w http.ResponseWriter, r *http.Request, name, value, path string, maxAge time.Duration) {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge / time.Second),
	}
	if maxAge < 0 {
		cookie.MaxAge = -1
	}
	http.SetCookie(w, cookie)
}
