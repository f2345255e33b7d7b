package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/journal-exchange/internal/model"
)

// FederationService is a mock of handler.FederationService.
type FederationService struct {
	mock.Mock
}

func (m *FederationService) ImportSubmission(ctx context.Context, remoteURL, submissionID, token string) (model.Submission, error) {
	args := m.Called(ctx, remoteURL, submissionID, token)
	return args.Get(0).(model.Submission), args.Error(1)
}

func (m *FederationService) SubmissionArchive(ctx context.Context, submissionID string) ([]byte, string, string, error) {
	args := m.Called(ctx, submissionID)
	data, _ := args.Get(0).([]byte)
	return data, args.String(1), args.String(2), args.Error(3)
}

func (m *FederationService) SubmissionMetadata(ctx context.Context, submissionID string) (model.ImportedSubmission, error) {
	args := m.Called(ctx, submissionID)
	return args.Get(0).(model.ImportedSubmission), args.Error(1)
}

func (m *FederationService) RemoteUserProfile(ctx context.Context, federatedID string) (model.FederatedUserStub, error) {
	args := m.Called(ctx, federatedID)
	return args.Get(0).(model.FederatedUserStub), args.Error(1)
}

// NewFederationService creates a FederationService mock that asserts its expectations on cleanup.
func NewFederationService(t interface {
	mock.TestingT
	Cleanup(func())
}) *FederationService {
	m := &FederationService{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
