package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/dtroode/journal-exchange/internal/model"
)

// SubmissionRepository keeps submissions with their reviews in process memory.
type SubmissionRepository struct {
	mu          sync.RWMutex
	submissions map[uuid.UUID]model.Submission
}

func NewSubmissionRepository() *SubmissionRepository {
	return &SubmissionRepository{submissions: make(map[uuid.UUID]model.Submission)}
}

func (r *SubmissionRepository) Create(ctx context.Context, submission model.Submission) (model.Submission, error) {
	if err := ctx.Err(); err != nil {
		return model.Submission{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.submissions[submission.ID]; ok {
		return model.Submission{}, fmt.Errorf("submission %s: %w", submission.ID, model.ErrConflict)
	}
	r.submissions[submission.ID] = clone(submission)
	return clone(submission), nil
}

func (r *SubmissionRepository) GetByID(ctx context.Context, id uuid.UUID) (model.Submission, error) {
	if err := ctx.Err(); err != nil {
		return model.Submission{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.submissions[id]
	if !ok {
		return model.Submission{}, model.ErrNotFound
	}
	return clone(s), nil
}

func (r *SubmissionRepository) GetArchiveID(ctx context.Context, id uuid.UUID) (string, error) {
	s, err := r.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return s.ArchiveID, nil
}

func (r *SubmissionRepository) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.submissions), nil
}

// List returns all submissions, oldest first.
func (r *SubmissionRepository) List(ctx context.Context) ([]model.Submission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Submission, 0, len(r.submissions))
	for _, s := range r.submissions {
		out = append(out, clone(s))
	}
	slices.SortFunc(out, func(a, b model.Submission) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

// clone copies the slices of a submission so callers cannot mutate stored state.
func clone(s model.Submission) model.Submission {
	s.Collaborators = slices.Clone(s.Collaborators)
	reviews := make([]model.Review, len(s.Reviews))
	for i, rv := range s.Reviews {
		rv.Comments = slices.Clone(rv.Comments)
		reviews[i] = rv
	}
	s.Reviews = reviews
	return s
}
