package model

import "time"

// TokenPurpose discriminates signed token classes. It is embedded in every
// token and checked before the purpose-specific payload is decoded.
type TokenPurpose string

const (
	PurposeEmailVerification   TokenPurpose = "email_verification"
	PurposePasswordReset       TokenPurpose = "password_reset"
	PurposeSSOHandoff          TokenPurpose = "sso_handoff"
	PurposeExportAuthorization TokenPurpose = "export_authorization"
	PurposeSession             TokenPurpose = "session"
)

// TokenCodec signs and verifies purpose-tagged payloads.
type TokenCodec interface {
	Issue(purpose TokenPurpose, payload any, ttl time.Duration) (string, error)
	Verify(purpose TokenPurpose, token string, dst any) error
}

// EmailVerificationClaims is the payload of an email verification token.
type EmailVerificationClaims struct {
	FederatedUserID string `json:"uid"`
	Email           string `json:"email"`
}

// PasswordResetClaims is the payload of a password reset token.
type PasswordResetClaims struct {
	FederatedUserID string `json:"uid"`
}

// SSOHandoffClaims is the payload of an SSO handoff token.
type SSOHandoffClaims struct {
	FederatedUserID string `json:"uid"`
	State           string `json:"state"`
}

// ExportClaims is the payload of an export authorization token.
type ExportClaims struct {
	SubmissionID string `json:"sid"`
}
