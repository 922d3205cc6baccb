package transfer_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/moyoez/kbupload/notify"
	"github.com/moyoez/kbupload/selection"
	"github.com/moyoez/kbupload/tool"
	"github.com/moyoez/kbupload/transfer"
	"github.com/moyoez/kbupload/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPurgeDelay = 30 * time.Millisecond

type recordingNotifier struct {
	mu   sync.Mutex
	sent []*types.Notification
}

func (r *recordingNotifier) Notify(n *types.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) all() []*types.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*types.Notification(nil), r.sent...)
}

type receivedPart struct {
	field    string
	filename string
	size     int
}

func newUploader(t *testing.T, reg *selection.Registry, baseURL string) (*transfer.Uploader, *recordingNotifier) {
	t.Helper()
	notes := &recordingNotifier{}
	u, err := transfer.NewUploader(reg, baseURL,
		transfer.WithHTTPClient(tool.NewHTTPClient(5*time.Second)),
		transfer.WithNotifier(notes),
		transfer.WithPurgeDelay(testPurgeDelay),
	)
	require.NoError(t, err)
	return u, notes
}

func TestSubmit_SuccessMarksDoneThenPurges(t *testing.T) {
	var hits atomic.Int32
	var mu sync.Mutex
	var parts []receivedPart
	var accept string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/upload", r.URL.Path)

		reader, err := r.MultipartReader()
		if !assert.NoError(t, err) {
			return
		}
		mu.Lock()
		accept = r.Header.Get("Accept")
		for {
			p, err := reader.NextPart()
			if errors.Is(err, io.EOF) {
				break
			}
			if !assert.NoError(t, err) {
				break
			}
			data, _ := io.ReadAll(p)
			parts = append(parts, receivedPart{field: p.FormName(), filename: p.FileName(), size: len(data)})
		}
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	reg := selection.NewRegistry(nil)
	reg.AddFiles(
		tool.NewMemoryFile("a.pdf", "application/pdf", make([]byte, 500)),
		tool.NewMemoryFile("b.txt", "text/plain", make([]byte, 1500)),
	)
	for _, e := range reg.Entries() {
		require.Equal(t, types.StatusPending, e.Status)
	}

	u, notes := newUploader(t, reg, server.URL)
	report := u.Submit(context.Background())

	assert.Equal(t, types.OutcomeSuccess, report.Outcome)
	assert.Equal(t, 2, report.Files)
	assert.Equal(t, int64(2000), report.TotalBytes)
	assert.Equal(t, http.StatusOK, report.StatusCode)
	assert.Equal(t, map[string]any{"status": "ok"}, report.Ack)
	assert.Equal(t, int32(1), hits.Load())
	assert.False(t, u.InProgress())

	mu.Lock()
	assert.Equal(t, "application/json", accept)
	assert.Equal(t, []receivedPart{
		{field: "files", filename: "a.pdf", size: 500},
		{field: "files", filename: "b.txt", size: 1500},
	}, parts)
	mu.Unlock()

	entries := reg.Entries()
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, types.StatusDone, e.Status)
	}

	sent := notes.all()
	require.Len(t, sent, 1)
	assert.Equal(t, types.NotifyTypeUploadSuccess, sent[0].Type)
	assert.Equal(t, notify.SuccessMessage, sent[0].Message)

	require.Eventually(t, func() bool { return reg.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSubmit_TransportUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	reg := selection.NewRegistry(nil)
	reg.AddFiles(tool.NewMemoryFile("a.pdf", "application/pdf", []byte("pdf")))

	u, notes := newUploader(t, reg, baseURL)
	report := u.Submit(context.Background())

	assert.Equal(t, types.OutcomeFailed, report.Outcome)
	assert.Equal(t, types.FailureTransport, report.Failure)
	assert.Zero(t, report.StatusCode)
	assert.Contains(t, report.Message, baseURL)

	entries := reg.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, types.StatusError, entries[0].Status)
	assert.Contains(t, entries[0].ErrorDetail, baseURL)

	sent := notes.all()
	require.Len(t, sent, 1)
	assert.Equal(t, types.NotifyTypeUploadFailed, sent[0].Type)
	assert.Contains(t, sent[0].Message, baseURL)

	time.Sleep(3 * testPurgeDelay)
	assert.Equal(t, 1, reg.Len(), "failed entries are never purged")
	assert.False(t, u.InProgress())
}

func TestSubmit_ServerRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"vector store offline"}`))
	}))
	defer server.Close()

	reg := selection.NewRegistry(nil)
	reg.AddFiles(
		tool.NewMemoryFile("a.pdf", "application/pdf", []byte("1")),
		tool.NewMemoryFile("b.pdf", "application/pdf", []byte("2")),
	)

	u, _ := newUploader(t, reg, server.URL)
	report := u.Submit(context.Background())

	assert.Equal(t, types.FailureServerRejected, report.Failure)
	assert.Equal(t, http.StatusInternalServerError, report.StatusCode)
	assert.Equal(t, "Upload failed: 500 Internal Server Error\n{\"detail\":\"vector store offline\"}", report.Message)
	for _, e := range reg.Entries() {
		assert.Equal(t, types.StatusError, e.Status)
		assert.Equal(t, report.Message, e.ErrorDetail)
	}
	assert.Equal(t, 2, reg.Len())
}

func TestSubmit_MalformedAcknowledgement(t *testing.T) {
	for name, body := range map[string]string{
		"not json": "<html>ok</html>",
		"empty":    "",
	} {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer server.Close()

			reg := selection.NewRegistry(nil)
			reg.AddFiles(tool.NewMemoryFile("a.txt", "text/plain", []byte("x")))

			u, notes := newUploader(t, reg, server.URL)
			report := u.Submit(context.Background())

			assert.Equal(t, types.FailureMalformedResponse, report.Failure)
			assert.Equal(t, "An unexpected error occurred while uploading files", report.Message)
			assert.Equal(t, types.StatusError, reg.Entries()[0].Status)
			require.Len(t, notes.all(), 1)
		})
	}
}

type brokenPayload struct{}

func (brokenPayload) Name() string        { return "gone.pdf" }
func (brokenPayload) Size() int64         { return 10 }
func (brokenPayload) ContentType() string { return "application/pdf" }
func (brokenPayload) Open() (io.ReadCloser, error) {
	return nil, errors.New("file was deleted")
}

func TestSubmit_UnreadablePayloadNeverHitsNetwork(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	reg := selection.NewRegistry(nil)
	reg.AddFiles(brokenPayload{})

	u, _ := newUploader(t, reg, server.URL)
	report := u.Submit(context.Background())

	assert.Equal(t, types.FailureMalformedResponse, report.Failure)
	assert.Zero(t, hits.Load())
	assert.Equal(t, types.StatusError, reg.Entries()[0].Status)
	assert.NotEmpty(t, reg.Entries()[0].ErrorDetail)
}

func TestSubmit_EmptyBatchIsNoop(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	u, notes := newUploader(t, selection.NewRegistry(nil), server.URL)
	report := u.Submit(context.Background())

	assert.Equal(t, types.OutcomeNoop, report.Outcome)
	assert.Equal(t, types.NoopEmptyBatch, report.NoopReason)
	assert.Zero(t, hits.Load())
	assert.False(t, u.InProgress())
	assert.Empty(t, notes.all())
}

func TestSubmit_SecondCallWhileOutstandingIsNoop(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	reg := selection.NewRegistry(nil)
	reg.AddFiles(tool.NewMemoryFile("a.pdf", "application/pdf", []byte("a")))
	u, _ := newUploader(t, reg, server.URL)

	done := make(chan types.Report, 1)
	go func() { done <- u.Submit(context.Background()) }()

	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, time.Millisecond)
	require.True(t, u.InProgress())
	before := reg.Entries()

	second := u.Submit(context.Background())
	assert.Equal(t, types.OutcomeNoop, second.Outcome)
	assert.Equal(t, types.NoopInProgress, second.NoopReason)
	assert.Equal(t, before, reg.Entries())
	assert.Equal(t, types.StatusUploading, before[0].Status)

	removed, err := reg.RemoveFile(0)
	require.NoError(t, err)
	assert.False(t, removed, "uploading entries cannot be removed")

	close(release)
	first := <-done
	assert.Equal(t, types.OutcomeSuccess, first.Outcome)
	assert.Equal(t, int32(1), hits.Load())
	assert.False(t, u.InProgress())
}

func TestSubmit_CallerCancellationDoesNotAbort(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	reg := selection.NewRegistry(nil)
	reg.AddFiles(tool.NewMemoryFile("a.pdf", "application/pdf", []byte(strings.Repeat("a", 64))))
	u, _ := newUploader(t, reg, server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := u.Submit(ctx)
	assert.Equal(t, types.OutcomeSuccess, report.Outcome)
}

func TestNewUploader_RejectsBadBaseURL(t *testing.T) {
	_, err := transfer.NewUploader(selection.NewRegistry(nil), "ftp://example.com")
	require.Error(t, err)
	_, err = transfer.NewUploader(selection.NewRegistry(nil), "")
	require.Error(t, err)
}

func TestSubmit_AddDuringUploadIsRefused(t *testing.T) {
	var hits atomic.Int32
	var mu sync.Mutex
	var sent []string
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		reader, err := r.MultipartReader()
		if !assert.NoError(t, err) {
			return
		}
		for {
			p, err := reader.NextPart()
			if err != nil {
				break
			}
			mu.Lock()
			sent = append(sent, p.FileName())
			mu.Unlock()
		}
		<-release
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	reg := selection.NewRegistry(nil)
	reg.AddFiles(tool.NewMemoryFile("a.pdf", "application/pdf", []byte("a")))
	u, _ := newUploader(t, reg, server.URL)

	done := make(chan types.Report, 1)
	go func() { done <- u.Submit(context.Background()) }()
	require.Eventually(t, func() bool { return hits.Load() == 1 }, time.Second, time.Millisecond)

	added, err := reg.AddFiles(tool.NewMemoryFile("late.pdf", "application/pdf", []byte("late")))
	require.ErrorIs(t, err, selection.ErrUploadInProgress)
	assert.Zero(t, added)

	close(release)
	report := <-done
	require.Equal(t, types.OutcomeSuccess, report.Outcome)
	assert.Equal(t, 1, report.Files)

	entries := reg.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "a.pdf", entries[0].DisplayName)
	assert.Equal(t, types.StatusDone, entries[0].Status)
	mu.Lock()
	assert.Equal(t, []string{"a.pdf"}, sent)
	mu.Unlock()
}

func TestSubmit_NewSuccessReplacesPendingPurge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	const delay = 300 * time.Millisecond
	reg := selection.NewRegistry(nil)
	u, err := transfer.NewUploader(reg, server.URL,
		transfer.WithHTTPClient(tool.NewHTTPClient(5*time.Second)),
		transfer.WithNotifier(&recordingNotifier{}),
		transfer.WithPurgeDelay(delay),
	)
	require.NoError(t, err)

	reg.AddFiles(tool.NewMemoryFile("a.pdf", "application/pdf", []byte("a")))
	require.Equal(t, types.OutcomeSuccess, u.Submit(context.Background()).Outcome)
	firstDone := time.Now()

	time.Sleep(delay / 2)
	reg.AddFiles(tool.NewMemoryFile("b.pdf", "application/pdf", []byte("b")))
	require.Equal(t, types.OutcomeSuccess, u.Submit(context.Background()).Outcome)

	// past the first purge's deadline, well before the second one
	time.Sleep(time.Until(firstDone.Add(delay + delay/4)))
	assert.Equal(t, 2, reg.Len())
	for _, e := range reg.Entries() {
		assert.Equal(t, types.StatusDone, e.Status)
	}

	require.Eventually(t, func() bool { return reg.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestSubmit_NotifiesAfterReleasingInProgress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	reg := selection.NewRegistry(nil)
	reg.AddFiles(tool.NewMemoryFile("a.pdf", "application/pdf", []byte("a")))

	var u *transfer.Uploader
	var busyDuringNotify []bool
	u, err := transfer.NewUploader(reg, server.URL,
		transfer.WithHTTPClient(tool.NewHTTPClient(5*time.Second)),
		transfer.WithPurgeDelay(testPurgeDelay),
		transfer.WithNotifier(notify.NotifierFunc(func(*types.Notification) {
			busyDuringNotify = append(busyDuringNotify, u.InProgress())
		})),
	)
	require.NoError(t, err)

	require.Equal(t, types.OutcomeSuccess, u.Submit(context.Background()).Outcome)
	server.Close()
	reg.Clear()
	reg.AddFiles(tool.NewMemoryFile("b.pdf", "application/pdf", []byte("b")))
	require.Equal(t, types.OutcomeFailed, u.Submit(context.Background()).Outcome)

	assert.Equal(t, []bool{false, false}, busyDuringNotify)
}
