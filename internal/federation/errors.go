package federation

import "fmt"

// Reason classifies why a call to a remote instance failed.
type Reason string

const (
	ReasonNetwork        Reason = "network"
	ReasonStatus         Reason = "status"
	ReasonDecode         Reason = "decode"
	ReasonRejected       Reason = "rejected"
	ReasonDigestMismatch Reason = "digest_mismatch"
	ReasonTooLarge       Reason = "too_large"
)

// RemoteError describes a failed outbound federation call.
type RemoteError struct {
	Reason     Reason
	URL        string
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("federation call %s failed (%s", e.URL, e.Reason)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(", status %d", e.StatusCode)
	}
	msg += ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

func newRemoteError(reason Reason, url string, status int, err error) *RemoteError {
	return &RemoteError{Reason: reason, URL: url, StatusCode: status, Err: err}
}
