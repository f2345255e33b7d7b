package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/journal-exchange/internal/model"
)

// ArchiveEngine is a mock of model.ArchiveEngine.
type ArchiveEngine struct {
	mock.Mock
}

func (m *ArchiveEngine) Compress(ctx context.Context, originalName string, content []byte) (string, error) {
	args := m.Called(ctx, originalName, content)
	return args.String(0), args.Error(1)
}

func (m *ArchiveEngine) Open(ctx context.Context, archiveID string) ([]byte, error) {
	args := m.Called(ctx, archiveID)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *ArchiveEngine) Delete(ctx context.Context, archiveID string) error {
	args := m.Called(ctx, archiveID)
	return args.Error(0)
}

func (m *ArchiveEngine) ExtractFileAsText(ctx context.Context, archiveID, path string) (model.ExtractedFile, error) {
	args := m.Called(ctx, archiveID, path)
	return args.Get(0).(model.ExtractedFile), args.Error(1)
}

func (m *ArchiveEngine) ListDirectory(ctx context.Context, archiveID, path string) ([]model.DirectoryEntry, error) {
	args := m.Called(ctx, archiveID, path)
	entries, _ := args.Get(0).([]model.DirectoryEntry)
	return entries, args.Error(1)
}

// NewArchiveEngine creates an ArchiveEngine mock that asserts its expectations on cleanup.
func NewArchiveEngine(t interface {
	mock.TestingT
	Cleanup(func())
}) *ArchiveEngine {
	m := &ArchiveEngine{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
