package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dtroode/journal-exchange/internal/model"
)

// SubmissionStore is a mock of model.SubmissionStore.
type SubmissionStore struct {
	mock.Mock
}

func (m *SubmissionStore) Create(ctx context.Context, submission model.Submission) (model.Submission, error) {
	args := m.Called(ctx, submission)
	return args.Get(0).(model.Submission), args.Error(1)
}

func (m *SubmissionStore) GetByID(ctx context.Context, id uuid.UUID) (model.Submission, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Submission), args.Error(1)
}

func (m *SubmissionStore) GetArchiveID(ctx context.Context, id uuid.UUID) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *SubmissionStore) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// NewSubmissionStore creates a SubmissionStore mock that asserts its expectations on cleanup.
func NewSubmissionStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *SubmissionStore {
	m := &SubmissionStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
