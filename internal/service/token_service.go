package service

import (
	"fmt"
	"time"

	"github.com/dtroode/journal-exchange/internal/logger"
	"github.com/dtroode/journal-exchange/internal/model"
)

// Token lifetimes per purpose.
const (
	EmailVerificationTTL   = 7 * 24 * time.Hour
	PasswordResetTTL       = 10 * time.Minute
	SSOHandoffTTL          = 5 * time.Minute
	ExportAuthorizationTTL = 10 * time.Minute
	SessionTTL             = 2 * time.Hour
)

// TokenService issues and verifies the purpose-specific tokens of an instance.
// All purposes share the codec's secret; the codec's purpose discriminant
// keeps them apart.
type TokenService struct {
	codec  model.TokenCodec
	logger *logger.Logger
}

func NewTokenService(codec model.TokenCodec, logger *logger.Logger) *TokenService {
	return &TokenService{codec: codec, logger: logger}
}

func (s *TokenService) IssueEmailVerification(federatedUserID, email string) (string, error) {
	return s.issue(model.PurposeEmailVerification, model.EmailVerificationClaims{
		FederatedUserID: federatedUserID,
		Email:           email,
	}, EmailVerificationTTL)
}

func (s *TokenService) VerifyEmailVerification(token string) (model.EmailVerificationClaims, error) {
	var claims model.EmailVerificationClaims
	if err := s.codec.Verify(model.PurposeEmailVerification, token, &claims); err != nil {
		return model.EmailVerificationClaims{}, err
	}
	return claims, nil
}

func (s *TokenService) IssuePasswordReset(federatedUserID string) (string, error) {
	return s.issue(model.PurposePasswordReset, model.PasswordResetClaims{
		FederatedUserID: federatedUserID,
	}, PasswordResetTTL)
}

func (s *TokenService) VerifyPasswordReset(token string) (model.PasswordResetClaims, error) {
	var claims model.PasswordResetClaims
	if err := s.codec.Verify(model.PurposePasswordReset, token, &claims); err != nil {
		return model.PasswordResetClaims{}, err
	}
	return claims, nil
}

func (s *TokenService) IssueSSOHandoff(federatedUserID, state string) (string, error) {
	return s.issue(model.PurposeSSOHandoff, model.SSOHandoffClaims{
		FederatedUserID: federatedUserID,
		State:           state,
	}, SSOHandoffTTL)
}

func (s *TokenService) VerifySSOHandoff(token string) (model.SSOHandoffClaims, error) {
	var claims model.SSOHandoffClaims
	if err := s.codec.Verify(model.PurposeSSOHandoff, token, &claims); err != nil {
		return model.SSOHandoffClaims{}, err
	}
	return claims, nil
}

func (s *TokenService) IssueExportAuthorization(submissionID string) (string, error) {
	return s.issue(model.PurposeExportAuthorization, model.ExportClaims{
		SubmissionID: submissionID,
	}, ExportAuthorizationTTL)
}

func (s *TokenService) VerifyExportAuthorization(token string) (model.ExportClaims, error) {
	var claims model.ExportClaims
	if err := s.codec.Verify(model.PurposeExportAuthorization, token, &claims); err != nil {
		return model.ExportClaims{}, err
	}
	return claims, nil
}

func (s *TokenService) IssueSession(identity model.SessionIdentity) (string, error) {
	return s.issue(model.PurposeSession, identity, SessionTTL)
}

func (s *TokenService) VerifySession(token string) (model.SessionIdentity, error) {
	var identity model.SessionIdentity
	if err := s.codec.Verify(model.PurposeSession, token, &identity); err != nil {
		return model.SessionIdentity{}, err
	}
	return identity, nil
}

// issue treats signing failures as unexpected and logs them.
func (s *TokenService) issue(purpose model.TokenPurpose, payload any, ttl time.Duration) (string, error) {
	token, err := s.codec.Issue(purpose, payload, ttl)
	if err != nil {
		s.logger.Error("Token service: failed to issue token",
			"purpose", purpose,
			"error", err.Error())
		return "", fmt.Errorf("issue %s: %w", purpose, err)
	}
	return token, nil
}
