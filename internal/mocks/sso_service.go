package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/journal-exchange/internal/model"
)

// SSOService is a mock of handler.SSOService.
type SSOService struct {
	mock.Mock
}

func (m *SSOService) BeginSSO(remoteURL string) (string, string, error) {
	args := m.Called(remoteURL)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *SSOService) AuthorizeSSO(identity model.SessionIdentity, state, from string) (string, error) {
	args := m.Called(identity, state, from)
	return args.String(0), args.Error(1)
}

func (m *SSOService) CompleteSSO(ctx context.Context, remoteURL, token, expectedState, gotState string) (model.SessionIdentity, string, error) {
	args := m.Called(ctx, remoteURL, token, expectedState, gotState)
	return args.Get(0).(model.SessionIdentity), args.String(1), args.Error(2)
}

func (m *SSOService) VerifySSO(ctx context.Context, token string) (model.SSOVerifyResponse, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(model.SSOVerifyResponse), args.Error(1)
}

// NewSSOService creates an SSOService mock that asserts its expectations on cleanup.
func NewSSOService(t interface {
	mock.TestingT
	Cleanup(func())
}) *SSOService {
	m := &SSOService{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
