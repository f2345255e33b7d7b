package federation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dtroode/journal-exchange/internal/archive"
	"github.com/dtroode/journal-exchange/internal/logger"
	"github.com/dtroode/journal-exchange/internal/model"
)

// DigestHeader carries the archive digest on binary transfers.
const DigestHeader = "X-Archive-Digest"

// Client performs outbound calls to peer instances. Every call is a single
// request bounded by the client timeout; nothing is retried.
type Client struct {
	httpClient *http.Client
	localBase  string
	maxBytes   int64
	logger     *logger.Logger
}

// NewClient creates a Client. localBase is this instance's public base URL,
// sent to peers as the import source.
func NewClient(localBase string, timeout time.Duration, maxBytes int64, logger *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		localBase:  localBase,
		maxBytes:   maxBytes,
		logger:     logger,
	}
}

type userResponse struct {
	Status string `json:"status"`
	model.FederatedUserStub
}

type metadataResponse struct {
	Status string `json:"status"`
	model.ImportedSubmission
}

// FetchRemoteUser looks up a user on its home instance.
func (c *Client) FetchRemoteUser(ctx context.Context, base, federatedID string) (model.FederatedUserStub, error) {
	endpoint, err := endpointURL(base, nil, "federation", "users", federatedID)
	if err != nil {
		return model.FederatedUserStub{}, c.fail(fmt.Errorf("%w: %w", model.ErrRemoteLookupFailed, err))
	}

	var body *userResponse
	if err := c.getJSON(ctx, endpoint, "", &body); err != nil {
		return model.FederatedUserStub{}, c.fail(fmt.Errorf("%w: %w", model.ErrRemoteLookupFailed, err))
	}
	if body == nil || body.Status != model.StatusOK || body.ID == "" {
		rerr := newRemoteError(ReasonRejected, endpoint, http.StatusOK, errors.New("user not reported"))
		return model.FederatedUserStub{}, c.fail(fmt.Errorf("%w: %w", model.ErrRemoteLookupFailed, rerr))
	}

	return body.FederatedUserStub, nil
}

// VerifySSOToken asks the issuing instance to verify a handoff token. Any
// response other than a status "ok" with a user id is a rejection.
func (c *Client) VerifySSOToken(ctx context.Context, base, token string) (model.SSOVerifyResponse, error) {
	endpoint, err := endpointURL(base, url.Values{"token": {token}}, "federation", "sso", "verify")
	if err != nil {
		return model.SSOVerifyResponse{}, c.fail(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return model.SSOVerifyResponse{}, c.fail(newRemoteError(ReasonNetwork, endpoint, 0, err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.SSOVerifyResponse{}, c.fail(newRemoteError(ReasonNetwork, endpoint, 0, err))
	}
	defer resp.Body.Close()

	var body *model.SSOVerifyResponse
	if resp.StatusCode == http.StatusUnauthorized {
		return model.SSOVerifyResponse{}, c.fail(newRemoteError(ReasonRejected, endpoint, resp.StatusCode, nil))
	}
	if resp.StatusCode != http.StatusOK {
		return model.SSOVerifyResponse{}, c.fail(newRemoteError(ReasonStatus, endpoint, resp.StatusCode, nil))
	}
	if err := c.decode(resp, endpoint, &body); err != nil {
		return model.SSOVerifyResponse{}, c.fail(err)
	}
	if body == nil || body.Status != model.StatusOK || body.ID == "" {
		return model.SSOVerifyResponse{}, c.fail(newRemoteError(ReasonRejected, endpoint, resp.StatusCode, nil))
	}

	return *body, nil
}

// FetchSubmissionBinary downloads a submission archive. When the peer sends
// a digest the body must match it.
func (c *Client) FetchSubmissionBinary(ctx context.Context, base, submissionID, token string) ([]byte, error) {
	endpoint, err := endpointURL(base, nil, "federation", "submissions", submissionID)
	if err != nil {
		return nil, c.fail(err)
	}

	resp, err := c.get(ctx, endpoint, token, archive.ContentType)
	if err != nil {
		return nil, c.fail(err)
	}
	defer resp.Body.Close()

	data, err := c.readBody(resp, endpoint)
	if err != nil {
		return nil, c.fail(err)
	}

	if digest := resp.Header.Get(DigestHeader); digest != "" {
		ok, err := archive.VerifyDigest(data, digest)
		if err != nil || !ok {
			return nil, c.fail(newRemoteError(ReasonDigestMismatch, endpoint, resp.StatusCode, err))
		}
	}

	return data, nil
}

// FetchSubmissionMetadata downloads the metadata document of a submission.
func (c *Client) FetchSubmissionMetadata(ctx context.Context, base, submissionID, token string) (*model.ImportedSubmission, error) {
	endpoint, err := endpointURL(base, nil, "federation", "submissions", submissionID, "metadata")
	if err != nil {
		return nil, c.fail(err)
	}

	var body *metadataResponse
	if err := c.getJSON(ctx, endpoint, token, &body); err != nil {
		return nil, c.fail(err)
	}
	if body == nil {
		return nil, c.fail(newRemoteError(ReasonDecode, endpoint, http.StatusOK, errors.New("empty metadata")))
	}
	if body.Status != model.StatusOK {
		return nil, c.fail(newRemoteError(ReasonRejected, endpoint, http.StatusOK, fmt.Errorf("status %q", body.Status)))
	}

	return &body.ImportedSubmission, nil
}

// NotifyImport asks a peer to import one of this instance's submissions.
func (c *Client) NotifyImport(ctx context.Context, base, submissionID, token string) error {
	query := url.Values{"from": {c.localBase}, "id": {submissionID}, "token": {token}}
	endpoint, err := endpointURL(base, query, "federation", "submissions", "import")
	if err != nil {
		return c.fail(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return c.fail(newRemoteError(ReasonNetwork, endpoint, 0, err))
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fail(newRemoteError(ReasonNetwork, endpoint, 0, err))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, c.maxBytes))

	if resp.StatusCode != http.StatusOK {
		return c.fail(newRemoteError(ReasonStatus, endpoint, resp.StatusCode, nil))
	}

	return nil
}

func (c *Client) get(ctx context.Context, endpoint, token, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, newRemoteError(ReasonNetwork, endpoint, 0, err)
	}
	req.Header.Set("Accept", accept)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newRemoteError(ReasonNetwork, endpoint, 0, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, newRemoteError(ReasonStatus, endpoint, resp.StatusCode, nil)
	}

	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, token string, dst any) error {
	resp, err := c.get(ctx, endpoint, token, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return c.decode(resp, endpoint, dst)
}

func (c *Client) decode(resp *http.Response, endpoint string, dst any) error {
	data, err := c.readBody(resp, endpoint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return newRemoteError(ReasonDecode, endpoint, resp.StatusCode, err)
	}
	return nil
}

func (c *Client) readBody(resp *http.Response, endpoint string) ([]byte, error) {
	if resp.ContentLength > c.maxBytes {
		return nil, newRemoteError(ReasonTooLarge, endpoint, resp.StatusCode, nil)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, newRemoteError(ReasonNetwork, endpoint, resp.StatusCode, err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, newRemoteError(ReasonTooLarge, endpoint, resp.StatusCode, nil)
	}
	return data, nil
}

func (c *Client) fail(err error) error {
	var rerr *RemoteError
	if errors.As(err, &rerr) {
		c.logger.Warn("Federation client: remote call failed",
			"url", rerr.URL,
			"reason", rerr.Reason,
			"status", rerr.StatusCode,
			"error", rerr.Err)
	} else {
		c.logger.Warn("Federation client: remote call failed", "error", err)
	}
	return err
}

func endpointURL(base string, query url.Values, segments ...string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", fmt.Errorf("invalid remote base url %q", base)
	}
	joined := parsed.JoinPath(segments...)
	joined.RawQuery = query.Encode()
	return joined.String(), nil
}
