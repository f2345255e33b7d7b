package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/dtroode/journal-exchange/internal/archive"
	"github.com/dtroode/journal-exchange/internal/logger"
	"github.com/dtroode/journal-exchange/internal/model"
)

// resolveConcurrency bounds parallel user lookups during an import.
const resolveConcurrency = 4

// FederationConfig holds the instance settings the federation flows need.
type FederationConfig struct {
	LocalBaseURL     string
	InstanceCode     string
	DefaultAvatarURL string
}

// Federation runs the cross-instance flows: submission export and import,
// SSO login and the serving side of both.
type Federation struct {
	users       model.UserStore
	submissions model.SubmissionStore
	archives    model.ArchiveEngine
	tokens      *TokenService
	client      model.FederationClient
	peers       model.PeerRegistry
	cfg         FederationConfig
	shadows     singleflight.Group
	logger      *logger.Logger
	now         func() time.Time
}

func NewFederation(
	users model.UserStore,
	submissions model.SubmissionStore,
	archives model.ArchiveEngine,
	tokens *TokenService,
	client model.FederationClient,
	peers model.PeerRegistry,
	cfg FederationConfig,
	logger *logger.Logger,
) *Federation {
	return &Federation{
		users:       users,
		submissions: submissions,
		archives:    archives,
		tokens:      tokens,
		client:      client,
		peers:       peers,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// ExportSubmission authorizes remoteURL to pull a local submission and asks it
// to do so. Local state is not changed.
func (s *Federation) ExportSubmission(ctx context.Context, submissionID, remoteURL string) error {
	id, err := uuid.Parse(submissionID)
	if err != nil {
		return fmt.Errorf("submission %q: %w", submissionID, model.ErrNotFound)
	}
	if _, err := s.submissions.GetByID(ctx, id); err != nil {
		return fmt.Errorf("failed to get submission: %w", err)
	}

	token, err := s.tokens.IssueExportAuthorization(id.String())
	if err != nil {
		return fmt.Errorf("failed to issue export token: %w", err)
	}

	if err := s.client.NotifyImport(ctx, remoteURL, id.String(), token); err != nil {
		s.logger.Warn("Federation service: remote refused import",
			"submission_id", id,
			"remote", remoteURL,
			"error", err)
		return fmt.Errorf("%w: %w", model.ErrExportFailed, err)
	}

	s.logger.Info("Federation service: submission exported",
		"submission_id", id,
		"remote", remoteURL)

	return nil
}

// ImportSubmission pulls a submission from remoteURL and stores it locally.
// Binary and metadata are both fetched before anything is written; the
// archive is written before the record that references it.
func (s *Federation) ImportSubmission(ctx context.Context, remoteURL, submissionID, token string) (model.Submission, error) {
	log := s.logger.With("remote", remoteURL, "remote_submission_id", submissionID)

	if !s.peers.Allows(remoteURL) {
		log.Warn("Federation service: import from unknown instance refused")
		return model.Submission{}, fmt.Errorf("%w: unknown instance %s", model.ErrImportFailed, remoteURL)
	}

	binary, err := s.client.FetchSubmissionBinary(ctx, remoteURL, submissionID, token)
	if err != nil || binary == nil {
		return model.Submission{}, importFailure("binary unavailable", err)
	}

	meta, err := s.client.FetchSubmissionMetadata(ctx, remoteURL, submissionID, token)
	if err != nil || meta == nil {
		return model.Submission{}, importFailure("metadata unavailable", err)
	}
	if err := checkReferences(meta); err != nil {
		return model.Submission{}, fmt.Errorf("%w: %w", model.ErrImportFailed, err)
	}

	users, err := s.resolveAll(ctx, remoteURL, referencedUsers(meta))
	if err != nil {
		return model.Submission{}, fmt.Errorf("%w: %w", model.ErrImportFailed, err)
	}

	submission := s.buildSubmission(meta, users)
	submission.Origin = remoteURL
	submission.OriginID = submissionID
	submission.ArchiveDigest = archive.Digest(binary)

	name := meta.Publication.Name
	if name == "" {
		name = "submission"
	}
	archiveID, err := s.archives.Compress(ctx, name, binary)
	if err != nil {
		return model.Submission{}, fmt.Errorf("%w: failed to store archive: %w", model.ErrImportFailed, err)
	}
	submission.ArchiveID = archiveID

	created, err := s.submissions.Create(ctx, submission)
	if err != nil {
		if delErr := s.archives.Delete(ctx, archiveID); delErr != nil {
			log.Error("Federation service: orphaned archive after failed import",
				"alert", true,
				"archive_id", archiveID,
				"error", errors.Join(err, delErr))
			return model.Submission{}, fmt.Errorf("%w: archive %s: %w", model.ErrStorageFatal, archiveID, errors.Join(err, delErr))
		}
		return model.Submission{}, fmt.Errorf("%w: failed to save submission: %w", model.ErrImportFailed, err)
	}

	log.Info("Federation service: submission imported",
		"submission_id", created.ID,
		"archive_id", archiveID,
		"reviews", len(created.Reviews))

	return created, nil
}

// SubmissionArchive returns the raw archive of a local submission with its
// digest and download file name.
func (s *Federation) SubmissionArchive(ctx context.Context, submissionID string) ([]byte, string, string, error) {
	id, err := uuid.Parse(submissionID)
	if err != nil {
		return nil, "", "", fmt.Errorf("submission %q: %w", submissionID, model.ErrNotFound)
	}

	archiveID, err := s.submissions.GetArchiveID(ctx, id)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to get archive id: %w", err)
	}

	data, err := s.archives.Open(ctx, archiveID)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to open archive: %w", err)
	}

	return data, archive.Digest(data), archiveID, nil
}

// SubmissionMetadata describes a local submission with user references
// translated to federated ids.
func (s *Federation) SubmissionMetadata(ctx context.Context, submissionID string) (model.ImportedSubmission, error) {
	id, err := uuid.Parse(submissionID)
	if err != nil {
		return model.ImportedSubmission{}, fmt.Errorf("submission %q: %w", submissionID, model.ErrNotFound)
	}

	sub, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		return model.ImportedSubmission{}, fmt.Errorf("failed to get submission: %w", err)
	}

	fids := make(map[uuid.UUID]string)
	federated := func(userID uuid.UUID) (string, error) {
		if fid, ok := fids[userID]; ok {
			return fid, nil
		}
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return "", fmt.Errorf("failed to get user %s: %w", userID, err)
		}
		fids[userID] = user.FederatedID
		return user.FederatedID, nil
	}

	owner, err := federated(sub.AuthorID)
	if err != nil {
		return model.ImportedSubmission{}, err
	}
	collaborators := make([]string, 0, len(sub.Collaborators))
	for _, c := range sub.Collaborators {
		fid, err := federated(c)
		if err != nil {
			return model.ImportedSubmission{}, err
		}
		collaborators = append(collaborators, fid)
	}

	out := model.ImportedSubmission{
		Publication: model.ImportedPublication{
			Name:          sub.Name,
			Title:         sub.Title,
			Owner:         owner,
			Introduction:  sub.Introduction,
			Revision:      sub.Revision,
			Collaborators: collaborators,
		},
		Reviews: make([]model.ImportedReview, 0, len(sub.Reviews)),
	}

	for _, rv := range sub.Reviews {
		reviewOwner, err := federated(rv.OwnerID)
		if err != nil {
			return model.ImportedSubmission{}, err
		}
		review := model.ImportedReview{
			Owner:     reviewOwner,
			CreatedAt: rv.CreatedAt,
			Comments:  make([]model.ImportedComment, 0, len(rv.Comments)),
		}
		for _, c := range rv.Comments {
			author, err := federated(c.AuthorID)
			if err != nil {
				return model.ImportedSubmission{}, err
			}
			comment := model.ImportedComment{
				ID:       c.ID.String(),
				Filename: c.Filename,
				Anchor:   c.Anchor,
				Contents: c.Contents,
				Author:   author,
				PostedAt: c.PostedAt,
			}
			if c.ReplyingTo != nil {
				replying := c.ReplyingTo.String()
				comment.Replying = &replying
			}
			review.Comments = append(review.Comments, comment)
		}
		out.Reviews = append(out.Reviews, review)
	}

	return out, nil
}

// RemoteUserProfile reports a local account to a peer instance. Shadow users
// are owned elsewhere and are not reported.
func (s *Federation) RemoteUserProfile(ctx context.Context, federatedID string) (model.FederatedUserStub, error) {
	user, err := s.users.GetByFederatedID(ctx, federatedID)
	if err != nil {
		return model.FederatedUserStub{}, fmt.Errorf("failed to get user: %w", err)
	}
	if user.IsShadow {
		return model.FederatedUserStub{}, fmt.Errorf("user %s is not local: %w", federatedID, model.ErrNotFound)
	}

	return model.FederatedUserStub{
		ID:    user.FederatedID,
		Name:  user.DisplayName(),
		Email: user.Email,
	}, nil
}

// buildSubmission maps imported metadata onto a new local record. Remote
// comment ids get fresh local ids and replies follow the same mapping;
// replies to comments outside the document are dropped.
func (s *Federation) buildSubmission(meta *model.ImportedSubmission, users map[string]model.User) model.Submission {
	now := s.now()
	sub := model.Submission{
		ID:            uuid.New(),
		Name:          meta.Publication.Name,
		Title:         meta.Publication.Title,
		Introduction:  meta.Publication.Introduction,
		Revision:      meta.Publication.Revision,
		AuthorID:      users[meta.Publication.Owner].ID,
		Collaborators: make([]uuid.UUID, 0, len(meta.Publication.Collaborators)),
		CreatedAt:     now,
		Reviews:       make([]model.Review, 0, len(meta.Reviews)),
	}
	for _, c := range meta.Publication.Collaborators {
		sub.Collaborators = append(sub.Collaborators, users[c].ID)
	}

	commentIDs := make(map[string]uuid.UUID)
	for _, rv := range meta.Reviews {
		for _, c := range rv.Comments {
			if _, ok := commentIDs[c.ID]; !ok {
				commentIDs[c.ID] = uuid.New()
			}
		}
	}

	for _, rv := range meta.Reviews {
		review := model.Review{
			ID:           uuid.New(),
			SubmissionID: sub.ID,
			OwnerID:      users[rv.Owner].ID,
			CreatedAt:    rv.CreatedAt,
			Comments:     make([]model.Comment, 0, len(rv.Comments)),
		}
		if review.CreatedAt.IsZero() {
			review.CreatedAt = now
		}
		for _, c := range rv.Comments {
			comment := model.Comment{
				ID:       commentIDs[c.ID],
				ReviewID: review.ID,
				Filename: c.Filename,
				Anchor:   c.Anchor,
				Contents: c.Contents,
				AuthorID: users[c.Author].ID,
				PostedAt: c.PostedAt,
			}
			if c.Replying != nil {
				if target, ok := commentIDs[*c.Replying]; ok {
					comment.ReplyingTo = &target
				}
			}
			review.Comments = append(review.Comments, comment)
		}
		sub.Reviews = append(sub.Reviews, review)
	}

	return sub
}

// resolveAll maps each federated id to a local user, creating shadow users
// for unknown remote ids.
func (s *Federation) resolveAll(ctx context.Context, remoteURL string, federatedIDs []string) (map[string]model.User, error) {
	users := make(map[string]model.User, len(federatedIDs))
	resolved := make([]model.User, len(federatedIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for i, fid := range federatedIDs {
		g.Go(func() error {
			user, err := s.resolveUser(gctx, fid, remoteURL)
			if err != nil {
				return err
			}
			resolved[i] = user
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, fid := range federatedIDs {
		users[fid] = resolved[i]
	}
	return users, nil
}

func importFailure(reason string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", model.ErrImportFailed, reason)
	}
	return fmt.Errorf("%w: %s: %w", model.ErrImportFailed, reason, err)
}

// checkReferences rejects metadata naming a user by an empty federated id.
func checkReferences(meta *model.ImportedSubmission) error {
	if meta.Publication.Owner == "" {
		return errors.New("metadata has no owner")
	}
	for i, c := range meta.Publication.Collaborators {
		if c == "" {
			return fmt.Errorf("collaborator %d has no id", i)
		}
	}
	for i, rv := range meta.Reviews {
		if rv.Owner == "" {
			return fmt.Errorf("review %d has no owner", i)
		}
		for j, c := range rv.Comments {
			if c.Author == "" {
				return fmt.Errorf("comment %d of review %d has no author", j, i)
			}
		}
	}
	return nil
}

// referencedUsers lists the distinct federated ids a metadata document refers to.
func referencedUsers(meta *model.ImportedSubmission) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(fid string) {
		if _, ok := seen[fid]; ok {
			return
		}
		seen[fid] = struct{}{}
		out = append(out, fid)
	}

	add(meta.Publication.Owner)
	for _, c := range meta.Publication.Collaborators {
		add(c)
	}
	for _, rv := range meta.Reviews {
		add(rv.Owner)
		for _, c := range rv.Comments {
			add(c.Author)
		}
	}
	return out
}
