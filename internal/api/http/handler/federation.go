package handler

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/dtroode/journal-exchange/internal/archive"
	"github.com/dtroode/journal-exchange/internal/federation"
	"github.com/dtroode/journal-exchange/internal/logger"
	"github.com/dtroode/journal-exchange/internal/model"
)

// FederationService serves submissions and users to peer instances.
type FederationService interface {
	ImportSubmission(ctx context.Context, remoteURL, submissionID, token string) (model.Submission, error)
	SubmissionArchive(ctx context.Context, submissionID string) ([]byte, string, string, error)
	SubmissionMetadata(ctx context.Context, submissionID string) (model.ImportedSubmission, error)
	RemoteUserProfile(ctx context.Context, federatedID string) (model.FederatedUserStub, error)
}

// Federation handles the instance-to-instance endpoints.
type Federation struct {
	service FederationService
	logger  *logger.Logger
}

// NewFederation creates a Federation handler.
func NewFederation(service FederationService, logger *logger.Logger) *Federation {
	return &Federation{service: service, logger: logger}
}

type userResponse struct {
	Status string `json:"status"`
	model.FederatedUserStub
}

// User reports a local account by federated id.
func (h *Federation) User(w http.ResponseWriter, r *http.Request) {
	federatedID := r.PathValue("id")

	user, err := h.service.RemoteUserProfile(r.Context(), federatedID)
	if err != nil {
		h.logger.Debug("Federation handler: user lookup failed",
			"federated_id", federatedID,
			"error", err.Error())
		handleError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{Status: model.StatusOK, FederatedUserStub: user})
}

// SubmissionArchive streams the raw archive of an exported submission.
func (h *Federation) SubmissionArchive(w http.ResponseWriter, r *http.Request) {
	submissionID := r.PathValue("id")

	data, digest, filename, err := h.service.SubmissionArchive(r.Context(), submissionID)
	if err != nil {
		h.logger.Warn("Federation handler: archive unavailable",
			"submission_id", submissionID,
			"error", err.Error())
		handleError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", archiveContentType(r.Header.Get("Accept")))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set(federation.DigestHeader, digest)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type metadataResponse struct {
	Status string `json:"status"`
	model.ImportedSubmission
}

// SubmissionMetadata describes an exported submission.
func (h *Federation) SubmissionMetadata(w http.ResponseWriter, r *http.Request) {
	submissionID := r.PathValue("id")

	meta, err := h.service.SubmissionMetadata(r.Context(), submissionID)
	if err != nil {
		h.logger.Warn("Federation handler: metadata unavailable",
			"submission_id", submissionID,
			"error", err.Error())
		handleError(w, h.logger, err)
		return
	}
	if meta.Reviews == nil {
		meta.Reviews = []model.ImportedReview{}
	}
	if meta.Publication.Collaborators == nil {
		meta.Publication.Collaborators = []string{}
	}

	writeJSON(w, http.StatusOK, metadataResponse{Status: model.StatusOK, ImportedSubmission: meta})
}

type importResponse struct {
	Status int `json:"status"`
}

// Import pulls a submission a peer has exported to this instance.
func (h *Federation) Import(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	from, id, token := query.Get("from"), query.Get("id"), query.Get("token")
	if from == "" || id == "" || token == "" {
		writeJSON(w, http.StatusBadRequest, importResponse{Status: http.StatusBadRequest})
		return
	}

	sub, err := h.service.ImportSubmission(r.Context(), from, id, token)
	if err != nil {
		h.logger.Error("Federation handler: import failed",
			"remote", from,
			"remote_submission_id", id,
			"error", err.Error())
		if errors.Is(err, model.ErrStorageFatal) {
			handleError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusBadGateway, importResponse{Status: http.StatusBadGateway})
		return
	}

	h.logger.Info("Federation handler: submission imported",
		"remote", from,
		"submission_id", sub.ID)

	writeJSON(w, http.StatusOK, importResponse{Status: http.StatusOK})
}

// archiveContentType echoes a single concrete media type from Accept and
// falls back to application/zip.
func archiveContentType(accept string) string {
	if accept == "" || strings.ContainsAny(accept, ",*") {
		return archive.ContentType
	}
	mediaType, _, err := mime.ParseMediaType(accept)
	if err != nil {
		return archive.ContentType
	}
	return mediaType
}
