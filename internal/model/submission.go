package model

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SubmissionStore defines persistence operations for submissions.
type SubmissionStore interface {
	// Create stores the submission together with its reviews and comments atomically.
	Create(ctx context.Context, submission Submission) (Submission, error)
	// GetByID returns the submission with reviews and comments.
	GetByID(ctx context.Context, id uuid.UUID) (Submission, error)
	GetArchiveID(ctx context.Context, id uuid.UUID) (string, error)
	Count(ctx context.Context) (int, error)
}

// Submission is one version of a manuscript and its review history.
type Submission struct {
	ID            uuid.UUID
	Name          string
	Title         string
	Introduction  string
	Revision      string
	AuthorID      uuid.UUID
	Collaborators []uuid.UUID
	ArchiveID     string
	ArchiveDigest string
	// Origin and OriginID are set on imported submissions.
	Origin    string
	OriginID  string
	CreatedAt time.Time
	Reviews   []Review
}

// Review groups the comments of one reviewer.
type Review struct {
	ID           uuid.UUID
	SubmissionID uuid.UUID
	OwnerID      uuid.UUID
	CreatedAt    time.Time
	Comments     []Comment
}

// Comment is a single review remark, optionally anchored in a file of the archive.
type Comment struct {
	ID         uuid.UUID
	ReviewID   uuid.UUID
	ReplyingTo *uuid.UUID
	Filename   *string
	Anchor     *string
	Contents   string
	AuthorID   uuid.UUID
	PostedAt   time.Time
}
