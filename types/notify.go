package types

const (
	NotifyTypeUploadSuccess = "upload_success"
	NotifyTypeUploadFailed  = "upload_failed"
)

// Notification represents a notification message structure
type Notification struct {
	Type    string         `json:"type,omitempty"`    // "upload_success" or "upload_failed"
	Title   string         `json:"title,omitempty"`   // Notification title
	Message string         `json:"message,omitempty"` // Notification message/content
	Data    map[string]any `json:"data,omitempty"`    // Additional data fields
}
