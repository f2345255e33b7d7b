package model

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// InstanceCodeLength is the width of the routing suffix of a federated id.
const InstanceCodeLength = 3

// NewFederatedID builds the federated id of a local user.
func NewFederatedID(id uuid.UUID, instanceCode string) string {
	return strings.ReplaceAll(id.String(), "-", "") + instanceCode
}

// InstanceCode returns the routing suffix of a federated id, or "" when the id is too short.
func InstanceCode(federatedID string) string {
	if len(federatedID) <= InstanceCodeLength {
		return ""
	}
	return federatedID[len(federatedID)-InstanceCodeLength:]
}

// FederatedUserStub is the minimal profile a remote instance reports for a user.
type FederatedUserStub struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ImportedSubmission is the metadata document exchanged on export.
type ImportedSubmission struct {
	Publication ImportedPublication `json:"publication"`
	Reviews     []ImportedReview    `json:"reviews"`
}

// ImportedPublication carries submission fields; user references are federated ids.
type ImportedPublication struct {
	Name          string   `json:"name"`
	Title         string   `json:"title"`
	Owner         string   `json:"owner"`
	Introduction  string   `json:"introduction"`
	Revision      string   `json:"revision"`
	Collaborators []string `json:"collaborators"`
}

// ImportedReview is a review in the exchanged metadata.
type ImportedReview struct {
	Owner     string            `json:"owner"`
	CreatedAt time.Time         `json:"createdAt"`
	Comments  []ImportedComment `json:"comments"`
}

// ImportedComment is a review comment in the exchanged metadata.
type ImportedComment struct {
	ID       string    `json:"id"`
	Replying *string   `json:"replying,omitempty"`
	Filename *string   `json:"filename,omitempty"`
	Anchor   *string   `json:"anchor,omitempty"`
	Contents string    `json:"contents"`
	Author   string    `json:"author"`
	PostedAt time.Time `json:"postedAt"`
}

// SSOVerifyResponse is the body of the SSO verification endpoint.
type SSOVerifyResponse struct {
	Status            string `json:"status"`
	ID                string `json:"id"`
	Email             string `json:"email"`
	Username          string `json:"username"`
	Name              string `json:"name"`
	ProfilePictureURL string `json:"profilePictureUrl"`
	// State echoes the state the handoff token was issued for.
	State             string `json:"state,omitempty"`
}

// StatusOK is the status value of successful federation responses.
const StatusOK = "ok"

// FederationClient performs outbound calls to peer instances. Every error it
// returns means the call produced no usable result.
type FederationClient interface {
	FetchRemoteUser(ctx context.Context, base, federatedID string) (FederatedUserStub, error)
	VerifySSOToken(ctx context.Context, base, token string) (SSOVerifyResponse, error)
	FetchSubmissionBinary(ctx context.Context, base, submissionID, token string) ([]byte, error)
	FetchSubmissionMetadata(ctx context.Context, base, submissionID, token string) (*ImportedSubmission, error)
	NotifyImport(ctx context.Context, base, submissionID, token string) error
}

// PeerRegistry routes federated ids to the base URL of their home instance.
type PeerRegistry interface {
	HomeOf(federatedID string) (string, bool)
	// Allows reports whether an instance may take part in imports and SSO.
	Allows(base string) bool
}
