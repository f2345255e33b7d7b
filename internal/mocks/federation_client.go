package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/journal-exchange/internal/model"
)

// FederationClient is a mock of model.FederationClient.
type FederationClient struct {
	mock.Mock
}

func (m *FederationClient) FetchRemoteUser(ctx context.Context, base, federatedID string) (model.FederatedUserStub, error) {
	args := m.Called(ctx, base, federatedID)
	return args.Get(0).(model.FederatedUserStub), args.Error(1)
}

func (m *FederationClient) VerifySSOToken(ctx context.Context, base, token string) (model.SSOVerifyResponse, error) {
	args := m.Called(ctx, base, token)
	return args.Get(0).(model.SSOVerifyResponse), args.Error(1)
}

func (m *FederationClient) FetchSubmissionBinary(ctx context.Context, base, submissionID, token string) ([]byte, error) {
	args := m.Called(ctx, base, submissionID, token)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *FederationClient) FetchSubmissionMetadata(ctx context.Context, base, submissionID, token string) (*model.ImportedSubmission, error) {
	args := m.Called(ctx, base, submissionID, token)
	meta, _ := args.Get(0).(*model.ImportedSubmission)
	return meta, args.Error(1)
}

func (m *FederationClient) NotifyImport(ctx context.Context, base, submissionID, token string) error {
	args := m.Called(ctx, base, submissionID, token)
	return args.Error(0)
}

// NewFederationClient creates a FederationClient mock that asserts its expectations on cleanup.
func NewFederationClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *FederationClient {
	m := &FederationClient{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
