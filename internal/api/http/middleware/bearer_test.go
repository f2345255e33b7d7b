package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/journal-exchange/internal/model"
	"github.com/dtroode/journal-exchange/internal/service"
	"github.com/dtroode/journal-exchange/internal/testutil"
	"github.com/dtroode/journal-exchange/internal/token"
)

const submissionID = "0b6a9d57-31a4-4ef0-9bde-3c4b1d7f0a11"

func newAuthenticator(t *testing.T) (*BearerAuthenticator, *service.TokenService) {
	t.Helper()
	tokens := service.NewTokenService(token.NewJWT("secret"), testutil.MakeNoopLogger())
	return NewBearerAuthenticator(tokens, testutil.MakeNoopLogger()), tokens
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{header: "Bearer abc", want: "abc", ok: true},
		{header: "bearer abc", want: "abc", ok: true},
		{header: "BEARER  abc ", want: "abc", ok: true},
		{header: "Basic abc", ok: false},
		{header: "Bearer", ok: false},
		{header: "Bearer ", ok: false},
		{header: "abc", ok: false},
		{header: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, ok := BearerToken(tt.header)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBearerAuthenticator_Authorize(t *testing.T) {
	auth, tokens := newAuthenticator(t)

	exportToken, err := tokens.IssueExportAuthorization(submissionID)
	require.NoError(t, err)
	resetToken, err := tokens.IssuePasswordReset("u1ABC")
	require.NoError(t, err)

	assert.True(t, auth.Authorize("Bearer "+exportToken))
	assert.True(t, auth.Authorize("bearer "+exportToken))
	assert.False(t, auth.Authorize(exportToken))
	assert.False(t, auth.Authorize("Bearer "+resetToken))
	assert.False(t, auth.Authorize("Bearer not-a-token"))
	assert.False(t, auth.Authorize(""))

	claims, ok := auth.Claims("Bearer " + exportToken)
	require.True(t, ok)
	assert.Equal(t, submissionID, claims.SubmissionID)
}

func TestBearerAuthenticator_RequireExport(t *testing.T) {
	auth, tokens := newAuthenticator(t)

	exportToken, err := tokens.IssueExportAuthorization(submissionID)
	require.NoError(t, err)
	otherToken, err := tokens.IssueExportAuthorization("8f0e7f1c-5f7e-4c47-9d67-1d2a1e0b6c33")
	require.NoError(t, err)

	var seen model.ExportClaims
	mux := http.NewServeMux()
	mux.Handle("GET /federation/submissions/{id}", auth.RequireExport(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ExportClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "valid token", header: "Bearer " + exportToken, want: http.StatusNoContent},
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "token for another submission", header: "Bearer " + otherToken, want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/federation/submissions/"+submissionID, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			mux.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.JSONEq(t, `{"status":"invalid_token"}`, rec.Body.String())
				assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
			}
		})
	}

	assert.Equal(t, submissionID, seen.SubmissionID)
}

func TestExportClaimsFromContext_Missing(t *testing.T) {
	_, ok := ExportClaimsFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}
