package service

import (
	"context"
	"encoding/base64"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/journal-exchange/internal/federation"
	"github.com/dtroode/journal-exchange/internal/model"
)

func TestFederation_CompleteSSO(t *testing.T) {
	ctx := context.Background()
	f := newFederationFixture(t)

	f.client.On("VerifySSOToken", mock.Anything, testRemote, "handoff").Return(model.SSOVerifyResponse{
		Status:            "ok",
		ID:                "u123",
		Email:             "",
		Username:          "",
		Name:              "Jane Doe",
		ProfilePictureURL: "",
		State:             "state-1",
	}, nil).Once()

	identity, session, err := f.svc.CompleteSSO(ctx, testRemote, "handoff", "state-1", "state-1")
	require.NoError(t, err)

	assert.Equal(t, "Jane", identity.FirstName)
	assert.Equal(t, "Doe", identity.LastName)
	assert.Equal(t, "JaneDoe", identity.Username)
	assert.Equal(t, testDefaultAvatar, identity.ProfilePictureURL)
	assert.False(t, identity.HasVerifiedEmail)
	assert.Equal(t, "u123", identity.FederatedID)

	fromSession, err := f.tokens.VerifySession(session)
	require.NoError(t, err)
	assert.Equal(t, identity, fromSession)

	stored, err := f.users.GetByFederatedID(ctx, "u123")
	require.NoError(t, err)
	assert.True(t, stored.IsShadow)
	assert.Equal(t, testRemote, stored.HomeInstance)
}

func TestFederation_CompleteSSOReusesExistingUser(t *testing.T) {
	ctx := context.Background()
	f := newFederationFixture(t)

	existing, err := f.users.Create(ctx, model.User{
		ID:           uuid.New(),
		FederatedID:  "u123",
		Username:     "jd",
		IsShadow:     true,
		HomeInstance: testRemote,
	})
	require.NoError(t, err)

	f.client.On("VerifySSOToken", mock.Anything, testRemote, "handoff").
		Return(model.SSOVerifyResponse{Status: "ok", ID: "u123", Name: "Jane Doe", State: "s"}, nil).Once()

	identity, _, err := f.svc.CompleteSSO(ctx, testRemote, "handoff", "s", "s")
	require.NoError(t, err)
	assert.Equal(t, existing.ID.String(), identity.ID)
	assert.Equal(t, "jd", identity.Username)
}

func TestFederation_CompleteSSOFailures(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		got      string
		remote   *model.SSOVerifyResponse
		err      error
	}{
		{name: "state mismatch", expected: "a", got: "b"},
		{name: "no stored state", expected: "", got: ""},
		{name: "remote rejects", expected: "s", got: "s", err: &federation.RemoteError{Reason: federation.ReasonRejected}},
		{name: "status not ok", expected: "s", got: "s", remote: &model.SSOVerifyResponse{Status: "error", ID: "u1"}},
		{name: "missing id", expected: "s", got: "s", remote: &model.SSOVerifyResponse{Status: "ok", State: "s"}},
		{name: "token issued for another state", expected: "s", got: "s", remote: &model.SSOVerifyResponse{Status: "ok", ID: "u1", State: "other"}},
		{name: "token without state", expected: "s", got: "s", remote: &model.SSOVerifyResponse{Status: "ok", ID: "u1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFederationFixture(t)
			if tt.remote != nil || tt.err != nil {
				resp := model.SSOVerifyResponse{}
				if tt.remote != nil {
					resp = *tt.remote
				}
				f.client.On("VerifySSOToken", mock.Anything, testRemote, "handoff").Return(resp, tt.err).Once()
			}

			_, session, err := f.svc.CompleteSSO(context.Background(), testRemote, "handoff", tt.expected, tt.got)
			require.ErrorIs(t, err, model.ErrSSOFailed)
			assert.Empty(t, session)
		})
	}
}

func TestFederation_CompleteSSORefusesForeignAccounts(t *testing.T) {
	const otherPeer = "https://other.example"

	tests := []struct {
		name    string
		peers   []federation.Peer
		setup   func(t *testing.T, f *federationFixture) string
		session bool
	}{
		{
			name: "local account",
			setup: func(t *testing.T, f *federationFixture) string {
				return f.addLocalUser(t, "Grace", "Hopper").FederatedID
			},
		},
		{
			name: "local id not stored yet",
			setup: func(t *testing.T, f *federationFixture) string {
				return model.NewFederatedID(uuid.New(), testInstanceCode)
			},
		},
		{
			name:  "registered home is another peer",
			peers: []federation.Peer{{Code: "OTH", BaseURL: otherPeer}, {Code: "REM", BaseURL: testRemote}},
			setup: func(t *testing.T, f *federationFixture) string {
				return "someoneOTH"
			},
		},
		{
			name: "shadow user of another instance",
			setup: func(t *testing.T, f *federationFixture) string {
				_, err := f.users.Create(context.Background(), model.User{
					ID:           uuid.New(),
					FederatedID:  "ada42X",
					IsShadow:     true,
					HomeInstance: otherPeer,
				})
				require.NoError(t, err)
				return "ada42X"
			},
		},
		{
			name: "non-shadow user with foreign id",
			setup: func(t *testing.T, f *federationFixture) string {
				_, err := f.users.Create(context.Background(), model.User{ID: uuid.New(), FederatedID: "imported42X"})
				require.NoError(t, err)
				return "imported42X"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFederationFixture(t, tt.peers...)
			id := tt.setup(t, f)
			f.client.On("VerifySSOToken", mock.Anything, testRemote, "handoff").
				Return(model.SSOVerifyResponse{Status: "ok", ID: id, State: "s"}, nil).Once()

			_, session, err := f.svc.CompleteSSO(context.Background(), testRemote, "handoff", "s", "s")
			require.ErrorIs(t, err, model.ErrSSOFailed)
			assert.Empty(t, session)
		})
	}
}

func TestFederation_CompleteSSOAcceptsRegisteredHome(t *testing.T) {
	f := newFederationFixture(t, federation.Peer{Code: "REM", BaseURL: testRemote + "/"})
	f.client.On("VerifySSOToken", mock.Anything, testRemote, "handoff").
		Return(model.SSOVerifyResponse{Status: "ok", ID: "janeREM", Name: "Jane Doe", State: "s"}, nil).Twice()

	first, _, err := f.svc.CompleteSSO(context.Background(), testRemote, "handoff", "s", "s")
	require.NoError(t, err)
	second, _, err := f.svc.CompleteSSO(context.Background(), testRemote, "handoff", "s", "s")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestFederation_BeginSSO(t *testing.T) {
	f := newFederationFixture(t)

	redirect, state, err := f.svc.BeginSSO(testRemote)
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(state)
	require.NoError(t, err)
	assert.Len(t, raw, 32)

	u, err := url.Parse(redirect)
	require.NoError(t, err)
	assert.Equal(t, "remote.example", u.Host)
	assert.Equal(t, "/federation/sso/authorize", u.Path)
	assert.Equal(t, state, u.Query().Get("state"))
	assert.Equal(t, testLocalBase, u.Query().Get("from"))

	_, other, err := f.svc.BeginSSO(testRemote)
	require.NoError(t, err)
	assert.NotEqual(t, state, other)

	_, _, err = f.svc.BeginSSO("javascript:alert(1)")
	require.ErrorIs(t, err, model.ErrSSOFailed)
}

func TestFederation_AuthorizeSSO(t *testing.T) {
	f := newFederationFixture(t)
	user := f.addLocalUser(t, "Grace", "Hopper")

	redirect, err := f.svc.AuthorizeSSO(user.Identity(), "state-1", "https://caller.example/")
	require.NoError(t, err)

	u, err := url.Parse(redirect)
	require.NoError(t, err)
	assert.Equal(t, "caller.example", u.Host)
	assert.Equal(t, "/federation/sso/callback", u.Path)
	assert.Equal(t, "state-1", u.Query().Get("state"))
	assert.Equal(t, testLocalBase, u.Query().Get("remote"))

	claims, err := f.tokens.VerifySSOHandoff(u.Query().Get("token"))
	require.NoError(t, err)
	assert.Equal(t, model.SSOHandoffClaims{FederatedUserID: user.FederatedID, State: "state-1"}, claims)

	_, err = f.svc.AuthorizeSSO(user.Identity(), "", "https://caller.example")
	require.ErrorIs(t, err, model.ErrSSOFailed)
	_, err = f.svc.AuthorizeSSO(model.SessionIdentity{}, "s", "https://caller.example")
	require.ErrorIs(t, err, model.ErrSSOFailed)
}

func TestFederation_AuthorizeSSORestrictedToPeers(t *testing.T) {
	f := newFederationFixture(t, federation.Peer{Code: "ABC", BaseURL: testRemote})
	user := f.addLocalUser(t, "Grace", "Hopper")

	_, err := f.svc.AuthorizeSSO(user.Identity(), "s", "https://stranger.example")
	require.ErrorIs(t, err, model.ErrSSOFailed)

	_, err = f.svc.AuthorizeSSO(user.Identity(), "s", testRemote)
	require.NoError(t, err)
}

func TestFederation_VerifySSO(t *testing.T) {
	ctx := context.Background()
	f := newFederationFixture(t)
	user := f.addLocalUser(t, "Grace", "Hopper")

	tok, err := f.tokens.IssueSSOHandoff(user.FederatedID, "s")
	require.NoError(t, err)

	resp, err := f.svc.VerifySSO(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, model.SSOVerifyResponse{
		Status:   "ok",
		ID:       user.FederatedID,
		Email:    user.Email,
		Username: user.Username,
		Name:     "Grace Hopper",
		State:    "s",
	}, resp)
}

func TestFederation_VerifySSORejects(t *testing.T) {
	ctx := context.Background()
	f := newFederationFixture(t)

	shadow, err := f.users.Create(ctx, model.User{ID: uuid.New(), FederatedID: "shadowXYZ", IsShadow: true})
	require.NoError(t, err)

	shadowTok, err := f.tokens.IssueSSOHandoff(shadow.FederatedID, "s")
	require.NoError(t, err)
	unknownTok, err := f.tokens.IssueSSOHandoff("nobodyLOC", "s")
	require.NoError(t, err)
	exportTok, err := f.tokens.IssueExportAuthorization(uuid.NewString())
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"shadow user":   shadowTok,
		"unknown user":  unknownTok,
		"wrong purpose": exportTok,
		"garbage":       "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.VerifySSO(ctx, tok)
			require.ErrorIs(t, err, model.ErrInvalidToken)
		})
	}
}

// Two instances complete a full handshake through their services.
func TestFederation_SSOHandshake(t *testing.T) {
	ctx := context.Background()
	home := newFederationFixture(t)
	visitor := newFederationFixtureAt(t, "VIS")
	user := home.addLocalUser(t, "Grace", "Hopper")

	redirect, state, err := visitor.svc.BeginSSO(testRemote)
	require.NoError(t, err)
	begin, err := url.Parse(redirect)
	require.NoError(t, err)

	callback, err := home.svc.AuthorizeSSO(user.Identity(), begin.Query().Get("state"), begin.Query().Get("from"))
	require.NoError(t, err)
	cb, err := url.Parse(callback)
	require.NoError(t, err)

	// The visitor's client would POST the token to the home instance.
	verified, err := home.svc.VerifySSO(ctx, cb.Query().Get("token"))
	require.NoError(t, err)
	visitor.client.On("VerifySSOToken", mock.Anything, testRemote, cb.Query().Get("token")).Return(verified, nil).Once()

	identity, _, err := visitor.svc.CompleteSSO(ctx, testRemote, cb.Query().Get("token"), state, cb.Query().Get("state"))
	require.NoError(t, err)
	assert.Equal(t, user.FederatedID, identity.FederatedID)
	assert.Equal(t, "Grace", identity.FirstName)
	assert.NotEqual(t, user.ID.String(), identity.ID)
}
