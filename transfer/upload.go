// Package transfer sends the selected batch to the ingestion endpoint in one request.
package transfer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/moyoez/kbupload/notify"
	"github.com/moyoez/kbupload/selection"
	"github.com/moyoez/kbupload/tool"
	"github.com/moyoez/kbupload/types"
)

// DefaultPurgeDelay is how long Done entries stay visible after a successful upload.
const DefaultPurgeDelay = 2 * time.Second

// Batch is the part of the selection registry the uploader drives.
type Batch interface {
	BeginUpload() []selection.Payload
	SetAllStatus(status types.Status, errorDetail string)
	ClearDone() int
}

// Uploader performs at most one outstanding transfer of the whole batch.
type Uploader struct {
	batch      Batch
	baseURL    string
	uploadURL  string
	client     *http.Client
	notifier   notify.Notifier
	purgeDelay time.Duration
	inProgress atomic.Bool

	purgeMu    sync.Mutex
	purgeTimer *time.Timer
}

type Option func(*Uploader)

// WithHTTPClient overrides tool.GetHttpClient().
func WithHTTPClient(client *http.Client) Option {
	return func(u *Uploader) { u.client = client }
}

func WithNotifier(n notify.Notifier) Option {
	return func(u *Uploader) { u.notifier = n }
}

// WithPurgeDelay sets how long Done entries remain before they are purged.
func WithPurgeDelay(d time.Duration) Option {
	return func(u *Uploader) {
		if d > 0 {
			u.purgeDelay = d
		}
	}
}

// NewUploader binds batch to the ingestion endpoint at baseURL.
func NewUploader(batch Batch, baseURL string, opts ...Option) (*Uploader, error) {
	normalized, err := tool.NormalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	uploadURL, err := tool.BuildUploadURL(normalized)
	if err != nil {
		return nil, err
	}
	u := &Uploader{
		batch:      batch,
		baseURL:    normalized,
		uploadURL:  uploadURL,
		notifier:   notify.LogNotifier{},
		purgeDelay: DefaultPurgeDelay,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

// BaseURL is the configured endpoint base, as named in transport failure messages.
func (u *Uploader) BaseURL() string { return u.baseURL }

// InProgress reports whether a transfer is outstanding.
func (u *Uploader) InProgress() bool { return u.inProgress.Load() }

// Submit sends every entry of the batch in one multipart request and writes the
// outcome back to all of them. It returns a noop report when the batch is empty or
// another Submit has not resolved yet. Failures are reported, never returned.
//
// Cancelling ctx does not abort a transfer once started; only the HTTP client's
// timeout bounds it.
func (u *Uploader) Submit(ctx context.Context) types.Report {
	if !u.inProgress.CompareAndSwap(false, true) {
		tool.DefaultLogger.Warnf("[Upload] Submit ignored: an upload is already in progress")
		return types.Report{Outcome: types.OutcomeNoop, NoopReason: types.NoopInProgress, Endpoint: u.uploadURL}
	}
	report, notification := u.submit(ctx)
	u.emit(notification)
	return report
}

// submit runs one transfer and releases the in-progress flag on return, before the
// caller sends the notification.
func (u *Uploader) submit(ctx context.Context) (types.Report, *types.Notification) {
	defer u.inProgress.Store(false)
	u.stopPurge()

	payloads := u.batch.BeginUpload()
	if len(payloads) == 0 {
		return types.Report{Outcome: types.OutcomeNoop, NoopReason: types.NoopEmptyBatch, Endpoint: u.uploadURL}, nil
	}

	report := types.Report{
		ID:        tool.GenerateRandomUUID(),
		Endpoint:  u.uploadURL,
		Files:     len(payloads),
		StartedAt: time.Now(),
	}
	for _, p := range payloads {
		report.TotalBytes += max(p.Size(), 0)
	}

	tool.DefaultLogger.Infof("[Upload] Sending %d files (%s) to %s",
		report.Files, tool.FormatFileSize(report.TotalBytes), u.uploadURL)

	ack, statusCode, err := u.send(context.WithoutCancel(ctx), payloads)
	report.CompletedAt = time.Now()
	report.StatusCode = statusCode

	if err != nil {
		report.Outcome = types.OutcomeFailed
		report.Failure = Classify(err)
		report.Message = UserMessage(err)
		tool.DefaultLogger.Errorf("[Upload] Upload failed (%s): %v", report.Failure, err)

		u.batch.SetAllStatus(types.StatusError, report.Message)
		return report, notify.UploadFailed(report.Files, u.baseURL, report.Failure, report.Message)
	}

	report.Outcome = types.OutcomeSuccess
	report.Ack = ack
	report.Message = notify.SuccessMessage
	tool.DefaultLogger.Infof("[Upload] Upload successful: %d files in %s", report.Files, report.CompletedAt.Sub(report.StartedAt))

	u.batch.SetAllStatus(types.StatusDone, "")
	u.schedulePurge()
	return report, notify.UploadSucceeded(report.Files, u.baseURL)
}

// send performs the single request. The returned status code is 0 when no response arrived.
func (u *Uploader) send(ctx context.Context, payloads []selection.Payload) (any, int, error) {
	body, contentType, err := buildMultipart(payloads)
	if err != nil {
		return nil, 0, &MalformedError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.uploadURL, body)
	if err != nil {
		return nil, 0, &MalformedError{Err: fmt.Errorf("failed to create upload request: %w", err)}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	client := u.client
	if client == nil {
		client = tool.GetHttpClient()
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, &TransportError{Endpoint: u.baseURL, Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			tool.DefaultLogger.Errorf("Failed to close response body: %v", err)
		}
	}()
	tool.DefaultLogger.Debugf("[Upload] Response status: %s", resp.Status)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &MalformedError{Err: fmt.Errorf("failed to read upload response: %w", err)}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		tool.DefaultLogger.Errorf("[Upload] Server rejected upload: %s: %s", resp.Status, string(respBody))
		return nil, resp.StatusCode, &RejectedError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(respBody),
		}
	}

	if len(respBody) == 0 {
		return nil, resp.StatusCode, &MalformedError{Err: fmt.Errorf("upload response body is empty")}
	}
	var ack any
	if err := sonic.Unmarshal(respBody, &ack); err != nil {
		return nil, resp.StatusCode, &MalformedError{Err: fmt.Errorf("failed to parse upload response: %w", err)}
	}
	tool.DefaultLogger.Debugf("[Upload] Acknowledgement: %s", string(respBody))
	return ack, resp.StatusCode, nil
}

// schedulePurge replaces any pending purge, so only the latest success decides
// when Done entries go.
func (u *Uploader) schedulePurge() {
	u.purgeMu.Lock()
	defer u.purgeMu.Unlock()
	if u.purgeTimer != nil {
		u.purgeTimer.Stop()
	}
	u.purgeTimer = time.AfterFunc(u.purgeDelay, func() {
		u.batch.ClearDone()
	})
}

func (u *Uploader) stopPurge() {
	u.purgeMu.Lock()
	defer u.purgeMu.Unlock()
	if u.purgeTimer != nil {
		u.purgeTimer.Stop()
		u.purgeTimer = nil
	}
}

func (u *Uploader) emit(n *types.Notification) {
	if n != nil && u.notifier != nil {
		u.notifier.Notify(n)
	}
}

func logCloseError(name string, err error) {
	tool.DefaultLogger.Errorf("[Upload] Failed to close %s: %v", name, err)
}
