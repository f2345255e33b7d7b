package mocks

import (
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/journal-exchange/internal/model"
)

// TokenCodec is a mock of model.TokenCodec.
type TokenCodec struct {
	mock.Mock
}

func (m *TokenCodec) Issue(purpose model.TokenPurpose, payload any, ttl time.Duration) (string, error) {
	args := m.Called(purpose, payload, ttl)
	return args.String(0), args.Error(1)
}

func (m *TokenCodec) Verify(purpose model.TokenPurpose, token string, dst any) error {
	args := m.Called(purpose, token, dst)
	return args.Error(0)
}

// NewTokenCodec creates a TokenCodec mock that asserts its expectations on cleanup.
func NewTokenCodec(t interface {
	mock.TestingT
	Cleanup(func())
}) *TokenCodec {
	m := &TokenCodec{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
