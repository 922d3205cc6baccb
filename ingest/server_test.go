package ingest_test

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/moyoez/kbupload/ingest"
	"github.com/moyoez/kbupload/selection"
	"github.com/moyoez/kbupload/tool"
	"github.com/moyoez/kbupload/transfer"
	"github.com/moyoez/kbupload/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type part struct {
	name string
	data string
}

func multipartBody(t *testing.T, field string, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for _, p := range parts {
		fw, err := w.CreateFormFile(field, p.name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(p.data))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func newIngest(t *testing.T, opts ...ingest.Option) (*ingest.Server, http.Handler) {
	t.Helper()
	srv, err := ingest.NewServer(0, filepath.Join(t.TempDir(), "library"), opts...)
	require.NoError(t, err)
	return srv, srv.Handler()
}

func post(t *testing.T, h http.Handler, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestUpload_SavesAcceptedAndRejectsOthers(t *testing.T) {
	srv, h := newIngest(t)
	body, ct := multipartBody(t, "files",
		part{"report.pdf", "pdf-bytes"},
		part{"report.pdf", "second copy"},
		part{"script.exe", "nope"},
	)

	w := post(t, h, body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp types.IngestResponse
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Processed 2/3 files successfully", resp.Message)
	assert.Equal(t, types.IngestSummary{Total: 3, Successful: 2, Failed: 1}, resp.Summary)
	require.Len(t, resp.Files, 3)

	assert.Equal(t, "processed", resp.Files[0].Status)
	assert.Equal(t, "report.pdf", resp.Files[0].SavedFilename)
	assert.Equal(t, "processed", resp.Files[1].Status)
	assert.Equal(t, "report_1.pdf", resp.Files[1].SavedFilename)
	assert.Equal(t, "error", resp.Files[2].Status)
	assert.Equal(t, "File type not supported: .exe", resp.Files[2].Message)

	saved, err := os.ReadFile(filepath.Join(srv.Dir(), "report_1.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "second copy", string(saved))
}

func TestUpload_MissingFilesField(t *testing.T) {
	_, h := newIngest(t)
	body, ct := multipartBody(t, "attachments", part{"a.txt", "x"})

	w := post(t, h, body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"detail"`)
}

func TestUpload_ProcessorFailureMarksFile(t *testing.T) {
	_, h := newIngest(t, ingest.WithProcessor(func(context.Context, string) error {
		return errors.New("embedding service down")
	}))
	body, ct := multipartBody(t, "files", part{"a.txt", "hello"})

	w := post(t, h, body, ct)
	require.Equal(t, http.StatusOK, w.Code)
	var resp types.IngestResponse
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Processed 0/1 files successfully", resp.Message)
	assert.Equal(t, "Unexpected error: embedding service down", resp.Files[0].Message)
}

func TestListFilesAndHealth(t *testing.T) {
	srv, h := newIngest(t)
	require.NoError(t, os.WriteFile(filepath.Join(srv.Dir(), "notes.txt"), []byte(strings.Repeat("n", 2048)), 0o644))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/files", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list types.IngestListResponse
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "notes.txt", list.Files[0].Name)
	assert.Equal(t, "2.00 KB", list.Files[0].Size)
	assert.Greater(t, list.Files[0].Modified, 0.0)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var health types.IngestHealthResponse
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, srv.Dir(), health.UploadDir)
	assert.Equal(t, 1, health.FilesCount)
}

func TestUploader_AgainstReceiver(t *testing.T) {
	srv, h := newIngest(t)
	endpoint := httptest.NewServer(h)
	defer endpoint.Close()

	batch := selection.NewRegistry(nil)
	batch.AddFiles(
		tool.NewMemoryFile("a.pdf", "application/pdf", make([]byte, 500)),
		tool.NewMemoryFile("b.txt", "text/plain", make([]byte, 1500)),
	)
	uploader, err := transfer.NewUploader(batch, endpoint.URL, transfer.WithPurgeDelay(20*time.Millisecond))
	require.NoError(t, err)

	report := uploader.Submit(context.Background())
	require.Equal(t, types.OutcomeSuccess, report.Outcome, report.Message)
	assert.Equal(t, http.StatusOK, report.StatusCode)

	for _, e := range batch.Entries() {
		assert.Equal(t, types.StatusDone, e.Status)
	}
	require.Eventually(t, func() bool { return batch.Len() == 0 }, time.Second, 5*time.Millisecond)

	for name, size := range map[string]int64{"a.pdf": 500, "b.txt": 1500} {
		info, err := os.Stat(filepath.Join(srv.Dir(), name))
		require.NoError(t, err)
		assert.Equal(t, size, info.Size())
	}
}
