package transfer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/moyoez/kbupload/types"
)

const unexpectedFailureMessage = "An unexpected error occurred while uploading files"

// TransportError means the ingestion endpoint could not be reached at all.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to send upload request to %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RejectedError means the endpoint answered with a non-2xx status.
type RejectedError struct {
	StatusCode int
	Status     string // e.g. "500 Internal Server Error"
	Body       string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("upload request failed: %s", e.Status)
}

// MalformedError covers failures building the request body or parsing the acknowledgement.
type MalformedError struct {
	Err error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("unexpected upload failure: %v", e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// Classify maps an upload error onto its failure kind. A nil error is FailureNone.
func Classify(err error) types.FailureKind {
	var transportErr *TransportError
	var rejectedErr *RejectedError
	switch {
	case err == nil:
		return types.FailureNone
	case errors.As(err, &transportErr):
		return types.FailureTransport
	case errors.As(err, &rejectedErr):
		return types.FailureServerRejected
	default:
		return types.FailureMalformedResponse
	}
}

// UserMessage derives the text shown next to each failed file.
func UserMessage(err error) string {
	var transportErr *TransportError
	var rejectedErr *RejectedError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &transportErr):
		return fmt.Sprintf("Failed to connect to the server. Please check if the backend is running on %s", transportErr.Endpoint)
	case errors.As(err, &rejectedErr):
		msg := "Upload failed: " + rejectedErr.Status
		if body := strings.TrimSpace(rejectedErr.Body); body != "" {
			msg += "\n" + body
		}
		return msg
	default:
		return unexpectedFailureMessage
	}
}
