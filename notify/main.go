package notify

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/moyoez/kbupload/tool"
	"github.com/moyoez/kbupload/types"
)

// NotifyWriteChunkSize is the chunk size when writing payload to Unix socket (avoid large single write).
const NotifyWriteChunkSize = 32 * 1024 // 32KB

const (
	SuccessTitle   = "Upload Complete"
	FailureTitle   = "Upload Failed"
	SuccessMessage = "Files uploaded and indexed successfully"
)

var (
	// DefaultUnixSocketPath is the default Unix socket path for IPC
	DefaultUnixSocketPath = "/tmp/kbupload-notify.sock"
	// UnixSocketTimeout is the timeout for Unix socket operations
	UnixSocketTimeout = 3 * time.Second
)

// Notifier receives the batch success and failure notifications.
type Notifier interface {
	Notify(notification *types.Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(notification *types.Notification)

func (f NotifierFunc) Notify(notification *types.Notification) { f(notification) }

// UploadSucceeded builds the success notification for a batch of files.
func UploadSucceeded(files int, endpoint string) *types.Notification {
	return &types.Notification{
		Type:    types.NotifyTypeUploadSuccess,
		Title:   SuccessTitle,
		Message: SuccessMessage,
		Data: map[string]any{
			"files":    files,
			"endpoint": endpoint,
		},
	}
}

// UploadFailed builds the failure notification; message is the per-file error detail.
func UploadFailed(files int, endpoint string, kind types.FailureKind, message string) *types.Notification {
	return &types.Notification{
		Type:    types.NotifyTypeUploadFailed,
		Title:   FailureTitle,
		Message: "Error uploading files: " + message,
		Data: map[string]any{
			"files":    files,
			"endpoint": endpoint,
			"failure":  string(kind),
		},
	}
}

// Multi fans a notification out to every non-nil notifier.
type Multi struct {
	mu        sync.RWMutex
	notifiers []Notifier
}

func NewMulti(notifiers ...Notifier) *Multi {
	m := &Multi{}
	for _, n := range notifiers {
		m.Add(n)
	}
	return m
}

func (m *Multi) Add(n Notifier) {
	if n == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifiers = append(m.notifiers, n)
}

func (m *Multi) Notify(notification *types.Notification) {
	m.mu.RLock()
	notifiers := append([]Notifier(nil), m.notifiers...)
	m.mu.RUnlock()
	for _, n := range notifiers {
		n.Notify(notification)
	}
}

// LogNotifier writes notifications to the default logger.
type LogNotifier struct{}

func (LogNotifier) Notify(notification *types.Notification) {
	if notification == nil {
		return
	}
	if notification.Type == types.NotifyTypeUploadFailed {
		tool.DefaultLogger.Errorf("[Notify] %s: %s", notification.Title, notification.Message)
		return
	}
	tool.DefaultLogger.Infof("[Notify] %s: %s", notification.Title, notification.Message)
}

// SocketNotifier forwards notifications over a Unix socket to a desktop helper.
// Delivery errors are logged and never reach the uploader.
type SocketNotifier struct {
	SocketPath string
}

func (s SocketNotifier) Notify(notification *types.Notification) {
	if err := SendNotification(notification, s.SocketPath); err != nil {
		tool.DefaultLogger.Warnf("[Notify] Failed to deliver notification over %s: %v", s.SocketPath, err)
	}
}

// SendNotification sends notification via Unix Domain Socket.
// Frame: 4-byte little-endian length, then the JSON payload.
func SendNotification(notification *types.Notification, socketPath string) error {
	if socketPath == "" {
		socketPath = DefaultUnixSocketPath
	}

	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		return fmt.Errorf("unix socket not found: %s (is the notification helper running?)", socketPath)
	}

	var payload []byte
	var err error
	if notification != nil {
		payload, err = sonic.Marshal(notification)
		if err != nil {
			return fmt.Errorf("failed to serialize notification data: %w", err)
		}
	} else {
		payload = []byte("{}")
	}

	if len(payload) > NotifyWriteChunkSize {
		return fmt.Errorf("notification payload too large: %d bytes (max %d)", len(payload), NotifyWriteChunkSize)
	}

	conn, err := net.DialTimeout("unix", socketPath, UnixSocketTimeout)
	if err != nil {
		return fmt.Errorf("failed to connect to Unix socket %s: %w", socketPath, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			tool.DefaultLogger.Errorf("Failed to close Unix socket connection: %v", err)
		}
	}()

	if err := conn.SetWriteDeadline(time.Now().Add(UnixSocketTimeout)); err != nil {
		tool.DefaultLogger.Errorf("Failed to set write deadline: %v", err)
	}

	lengthBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lengthBuf, uint32(len(payload)))
	if _, err := conn.Write(lengthBuf); err != nil {
		return fmt.Errorf("failed to write length to Unix socket: %w", err)
	}
	tool.DefaultLogger.Debugf("Sending notification to Unix socket (len=%d): %s", len(payload), string(payload))
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("failed to write payload to Unix socket: %w", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(UnixSocketTimeout)); err != nil {
		tool.DefaultLogger.Errorf("Failed to set read deadline: %v", err)
	}

	// The helper may acknowledge with a small JSON object; it is only logged.
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read response from Unix socket: %w", err)
	}
	if n > 0 {
		var response map[string]any
		if err := sonic.Unmarshal(buf[:n], &response); err != nil {
			tool.DefaultLogger.Debugf("Unix socket response (raw): %s", string(buf[:n]))
		} else {
			tool.DefaultLogger.Debugf("Unix socket response: %v", response)
		}
	}
	return nil
}
