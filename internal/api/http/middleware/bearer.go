package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/dtroode/journal-exchange/internal/logger"
	"github.com/dtroode/journal-exchange/internal/model"
)

// ExportVerifier checks export authorization tokens.
type ExportVerifier interface {
	VerifyExportAuthorization(token string) (model.ExportClaims, error)
}

type exportClaimsKey struct{}

// BearerAuthenticator validates "Bearer <export-token>" authorization headers.
type BearerAuthenticator struct {
	tokens ExportVerifier
	logger *logger.Logger
}

// NewBearerAuthenticator creates a BearerAuthenticator backed by tokens.
func NewBearerAuthenticator(tokens ExportVerifier, logger *logger.Logger) *BearerAuthenticator {
	return &BearerAuthenticator{tokens: tokens, logger: logger}
}

// Authorize reports whether header carries a currently valid export token.
// The submission the token was issued for is not checked.
func (a *BearerAuthenticator) Authorize(header string) bool {
	_, ok := a.Claims(header)
	return ok
}

// Claims returns the claims of a valid export token found in header.
func (a *BearerAuthenticator) Claims(header string) (model.ExportClaims, bool) {
	token, ok := BearerToken(header)
	if !ok {
		return model.ExportClaims{}, false
	}

	claims, err := a.tokens.VerifyExportAuthorization(token)
	if err != nil {
		a.logger.Debug("Bearer authenticator: token rejected",
			"error", err.Error())
		return model.ExportClaims{}, false
	}

	return claims, true
}

// RequireExport rejects requests without a valid export token, and requests
// whose token was issued for a submission other than the {id} path value.
func (a *BearerAuthenticator) RequireExport(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := a.Claims(r.Header.Get("Authorization"))
		if !ok {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeStatus(w, http.StatusUnauthorized, "invalid_token")
			return
		}

		if id := r.PathValue("id"); id != "" && !strings.EqualFold(id, claims.SubmissionID) {
			a.logger.Warn("Bearer authenticator: token issued for another submission",
				"path_id", id,
				"token_id", claims.SubmissionID)
			writeStatus(w, http.StatusForbidden, "forbidden")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), exportClaimsKey{}, claims)))
	})
}

// ExportClaimsFromContext returns the claims stored by RequireExport.
func ExportClaimsFromContext(ctx context.Context) (model.ExportClaims, bool) {
	claims, ok := ctx.Value(exportClaimsKey{}).(model.ExportClaims)
	return claims, ok
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" value.
// The scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"status":"` + status + `"}`))
}
