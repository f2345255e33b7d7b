package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/dtroode/journal-exchange/internal/model"
)

const stateBytes = 32

// BeginSSO starts a login through remoteURL. It returns where to send the
// browser and the state value the caller must keep until the callback.
func (s *Federation) BeginSSO(remoteURL string) (string, string, error) {
	if !s.peers.Allows(remoteURL) {
		return "", "", fmt.Errorf("%w: unknown instance %s", model.ErrSSOFailed, remoteURL)
	}

	buf := make([]byte, stateBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate state: %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(buf)

	redirect, err := withPath(remoteURL, url.Values{"state": {state}, "from": {s.cfg.LocalBaseURL}}, "federation", "sso", "authorize")
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", model.ErrSSOFailed, err)
	}

	return redirect, state, nil
}

// AuthorizeSSO hands the signed-in user over to the instance at from. The
// returned URL is that instance's callback carrying a handoff token.
func (s *Federation) AuthorizeSSO(identity model.SessionIdentity, state, from string) (string, error) {
	if state == "" {
		return "", fmt.Errorf("%w: missing state", model.ErrSSOFailed)
	}
	if identity.FederatedID == "" {
		return "", fmt.Errorf("%w: session has no federated id", model.ErrSSOFailed)
	}
	if !s.peers.Allows(from) {
		return "", fmt.Errorf("%w: unknown instance %s", model.ErrSSOFailed, from)
	}

	token, err := s.tokens.IssueSSOHandoff(identity.FederatedID, state)
	if err != nil {
		return "", fmt.Errorf("failed to issue handoff token: %w", err)
	}

	redirect, err := withPath(from, url.Values{"token": {token}, "state": {state}, "remote": {s.cfg.LocalBaseURL}}, "federation", "sso", "callback")
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrSSOFailed, err)
	}

	s.logger.Info("Federation service: sso handoff issued",
		"federated_id", identity.FederatedID,
		"to", from)

	return redirect, nil
}

// CompleteSSO finishes a login started by BeginSSO. On success the remote
// identity is stored as a shadow user and a session token is issued.
func (s *Federation) CompleteSSO(ctx context.Context, remoteURL, token, expectedState, gotState string) (model.SessionIdentity, string, error) {
	if expectedState == "" || subtle.ConstantTimeCompare([]byte(expectedState), []byte(gotState)) != 1 {
		return model.SessionIdentity{}, "", fmt.Errorf("%w: state mismatch", model.ErrSSOFailed)
	}

	remote, err := s.client.VerifySSOToken(ctx, remoteURL, token)
	if err != nil {
		return model.SessionIdentity{}, "", fmt.Errorf("%w: %w", model.ErrSSOFailed, err)
	}
	if remote.Status != model.StatusOK || remote.ID == "" {
		return model.SessionIdentity{}, "", fmt.Errorf("%w: remote status %q", model.ErrSSOFailed, remote.Status)
	}
	if subtle.ConstantTimeCompare([]byte(remote.State), []byte(expectedState)) != 1 {
		return model.SessionIdentity{}, "", fmt.Errorf("%w: handoff token bound to another state", model.ErrSSOFailed)
	}
	if err := s.checkVouch(remoteURL, remote.ID); err != nil {
		return model.SessionIdentity{}, "", err
	}

	user, err := s.materialize(ctx, remote.ID, func(context.Context) (model.User, error) {
		return s.shadowUser(remote.ID, remoteURL, remote), nil
	})
	if err != nil {
		return model.SessionIdentity{}, "", fmt.Errorf("%w: %w", model.ErrSSOFailed, err)
	}
	if !user.IsShadow || !sameInstance(user.HomeInstance, remoteURL) {
		return model.SessionIdentity{}, "", fmt.Errorf("%w: %s does not own user %s", model.ErrSSOFailed, remoteURL, remote.ID)
	}

	identity := user.Identity()
	session, err := s.tokens.IssueSession(identity)
	if err != nil {
		return model.SessionIdentity{}, "", fmt.Errorf("failed to issue session: %w", err)
	}

	s.logger.Info("Federation service: sso login completed",
		"user_id", user.ID,
		"federated_id", remote.ID,
		"remote", remoteURL)

	return identity, session, nil
}

// VerifySSO answers a peer's verification request for a handoff token issued
// here. Only local accounts are vouched for.
func (s *Federation) VerifySSO(ctx context.Context, token string) (model.SSOVerifyResponse, error) {
	claims, err := s.tokens.VerifySSOHandoff(token)
	if err != nil {
		return model.SSOVerifyResponse{}, err
	}

	user, err := s.users.GetByFederatedID(ctx, claims.FederatedUserID)
	if err != nil {
		return model.SSOVerifyResponse{}, fmt.Errorf("%w: user %s: %w", model.ErrInvalidToken, claims.FederatedUserID, err)
	}
	if user.IsShadow {
		return model.SSOVerifyResponse{}, fmt.Errorf("%w: user %s is not local", model.ErrInvalidToken, claims.FederatedUserID)
	}

	return model.SSOVerifyResponse{
		Status:            model.StatusOK,
		ID:                user.FederatedID,
		State:             claims.State,
		Email:             user.Email,
		Username:          user.Username,
		Name:              user.DisplayName(),
		ProfilePictureURL: user.ProfilePictureURL,
	}, nil
}

// checkVouch refuses identities remoteURL cannot speak for: accounts of this
// instance and accounts whose registered home is another peer.
func (s *Federation) checkVouch(remoteURL, federatedID string) error {
	if model.InstanceCode(federatedID) == s.cfg.InstanceCode {
		return fmt.Errorf("%w: %s vouched for local user %s", model.ErrSSOFailed, remoteURL, federatedID)
	}
	if home, ok := s.peers.HomeOf(federatedID); ok && !sameInstance(home, remoteURL) {
		return fmt.Errorf("%w: user %s belongs to %s, not %s", model.ErrSSOFailed, federatedID, home, remoteURL)
	}
	return nil
}

func sameInstance(a, b string) bool {
	return a != "" && strings.TrimRight(a, "/") == strings.TrimRight(b, "/")
}

// withPath appends path segments and a query to a base URL.
func withPath(base string, query url.Values, segments ...string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", fmt.Errorf("invalid instance url %q", base)
	}
	joined := parsed.JoinPath(segments...)
	joined.RawQuery = query.Encode()
	return joined.String(), nil
}
