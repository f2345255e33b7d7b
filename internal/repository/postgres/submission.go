package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dtroode/journal-exchange/internal/model"
)

var _ model.SubmissionStore = (*SubmissionRepository)(nil)

type SubmissionRepository struct {
	db *Connection
}

func NewSubmissionRepository(db *Connection) *SubmissionRepository {
	return &SubmissionRepository{
		db: db,
	}
}

// Create inserts the submission, its collaborators, reviews and comments in
// one transaction.
func (r *SubmissionRepository) Create(ctx context.Context, s model.Submission) (model.Submission, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Submission{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO submissions
		(id, name, title, introduction, revision, author_id, archive_id, archive_digest, origin, origin_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, s.Name, s.Title, s.Introduction, s.Revision, s.AuthorID, s.ArchiveID, s.ArchiveDigest,
		s.Origin, s.OriginID, s.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Submission{}, fmt.Errorf("submission %s: %w", s.ID, model.ErrConflict)
		}
		return model.Submission{}, fmt.Errorf("failed to insert submission: %w", err)
	}

	for i, userID := range s.Collaborators {
		_, err = tx.ExecContext(ctx, `INSERT INTO submission_collaborators (submission_id, position, user_id)
			VALUES ($1, $2, $3)`, s.ID, i, userID)
		if err != nil {
			return model.Submission{}, fmt.Errorf("failed to insert collaborator: %w", err)
		}
	}

	for i, review := range s.Reviews {
		_, err = tx.ExecContext(ctx, `INSERT INTO reviews (id, submission_id, position, owner_id, created_at)
			VALUES ($1, $2, $3, $4, $5)`, review.ID, s.ID, i, review.OwnerID, review.CreatedAt)
		if err != nil {
			return model.Submission{}, fmt.Errorf("failed to insert review: %w", err)
		}

		for j, c := range review.Comments {
			_, err = tx.ExecContext(ctx, `INSERT INTO comments
				(id, review_id, position, replying_to, filename, anchor, contents, author_id, posted_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				c.ID, review.ID, j, nullUUID(c.ReplyingTo), c.Filename, c.Anchor, c.Contents, c.AuthorID, c.PostedAt,
			)
			if err != nil {
				return model.Submission{}, fmt.Errorf("failed to insert comment: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return model.Submission{}, fmt.Errorf("failed to commit submission: %w", err)
	}

	return s, nil
}

func (r *SubmissionRepository) GetByID(ctx context.Context, id uuid.UUID) (model.Submission, error) {
	var s model.Submission
	err := r.db.QueryRowContext(ctx, `SELECT id, name, title, introduction, revision, author_id,
			archive_id, archive_digest, origin, origin_id, created_at
		FROM submissions WHERE id = $1`, id).Scan(
		&s.ID, &s.Name, &s.Title, &s.Introduction, &s.Revision, &s.AuthorID,
		&s.ArchiveID, &s.ArchiveDigest, &s.Origin, &s.OriginID, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Submission{}, model.ErrNotFound
		}
		return model.Submission{}, fmt.Errorf("failed to get submission: %w", err)
	}

	if s.Collaborators, err = r.collaborators(ctx, id); err != nil {
		return model.Submission{}, err
	}
	if s.Reviews, err = r.reviews(ctx, id); err != nil {
		return model.Submission{}, err
	}

	return s, nil
}

func (r *SubmissionRepository) GetArchiveID(ctx context.Context, id uuid.UUID) (string, error) {
	var archiveID string
	err := r.db.QueryRowContext(ctx, `SELECT archive_id FROM submissions WHERE id = $1`, id).Scan(&archiveID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", model.ErrNotFound
		}
		return "", fmt.Errorf("failed to get archive id: %w", err)
	}
	return archiveID, nil
}

func (r *SubmissionRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM submissions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}
	return n, nil
}

func (r *SubmissionRepository) collaborators(ctx context.Context, submissionID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM submission_collaborators
		WHERE submission_id = $1 ORDER BY position`, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query collaborators: %w", err)
	}
	defer rows.Close()

	out := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan collaborator: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *SubmissionRepository) reviews(ctx context.Context, submissionID uuid.UUID) ([]model.Review, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, owner_id, created_at FROM reviews
		WHERE submission_id = $1 ORDER BY position`, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]model.Review, 0)
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		rv := model.Review{SubmissionID: submissionID, Comments: make([]model.Comment, 0)}
		if err := rows.Scan(&rv.ID, &rv.OwnerID, &rv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		index[rv.ID] = len(reviews)
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read reviews: %w", err)
	}

	crows, err := r.db.QueryContext(ctx, `SELECT c.id, c.review_id, c.replying_to, c.filename, c.anchor,
			c.contents, c.author_id, c.posted_at
		FROM comments c JOIN reviews rv ON rv.id = c.review_id
		WHERE rv.submission_id = $1 ORDER BY rv.position, c.position`, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer crows.Close()

	for crows.Next() {
		var c model.Comment
		var replying uuid.NullUUID
		if err := crows.Scan(&c.ID, &c.ReviewID, &replying, &c.Filename, &c.Anchor,
			&c.Contents, &c.AuthorID, &c.PostedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		if replying.Valid {
			c.ReplyingTo = &replying.UUID
		}
		i, ok := index[c.ReviewID]
		if !ok {
			continue
		}
		reviews[i].Comments = append(reviews[i].Comments, c)
	}

	return reviews, crows.Err()
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
