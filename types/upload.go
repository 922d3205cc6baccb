package types

import "time"

// Outcome is how a submit call resolved.
type Outcome string

const (
	OutcomeNoop    Outcome = "noop"
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// FailureKind tells the three failure causes apart for callers that need more than the message.
type FailureKind string

const (
	FailureNone              FailureKind = ""
	FailureTransport         FailureKind = "transport_unreachable"
	FailureServerRejected    FailureKind = "server_rejected"
	FailureMalformedResponse FailureKind = "malformed_response"
)

// NoopReason explains why a submit did nothing.
type NoopReason string

const (
	NoopEmptyBatch NoopReason = "empty_batch"
	NoopInProgress NoopReason = "in_progress"
)

// Report is the result of one submit call.
type Report struct {
	ID          string      `json:"id,omitempty"`
	Outcome     Outcome     `json:"outcome"`
	NoopReason  NoopReason  `json:"noopReason,omitempty"`
	Endpoint    string      `json:"endpoint,omitempty"`
	Files       int         `json:"files"`
	TotalBytes  int64       `json:"totalBytes"`
	Failure     FailureKind `json:"failure,omitempty"`
	StatusCode  int         `json:"statusCode,omitempty"`
	Message     string      `json:"message,omitempty"`
	Ack         any         `json:"ack,omitempty"`
	StartedAt   time.Time   `json:"startedAt"`
	CompletedAt time.Time   `json:"completedAt"`
}
