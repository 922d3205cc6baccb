package types

// Status is the lifecycle state of one selected file.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusDone      Status = "done"
	StatusError     Status = "error"
)

// Label returns the status with its first letter capitalized, e.g. "Uploading".
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusUploading:
		return "Uploading"
	case StatusDone:
		return "Done"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Color is the indicator tone used by list renderers.
func (s Status) Color() string {
	switch s {
	case StatusDone:
		return "green"
	case StatusUploading:
		return "blue"
	case StatusError:
		return "red"
	default:
		return "gray"
	}
}

// Removable reports whether an entry in this state may be removed by the user.
func (s Status) Removable() bool {
	return s != StatusUploading
}

// FileEntry is a read-only view of one entry in the batch.
type FileEntry struct {
	Index       int    `json:"index"`
	Key         string `json:"key"`
	DisplayName string `json:"displayName"`
	SizeBytes   int64  `json:"sizeBytes"`
	SizeText    string `json:"sizeText"`
	ContentType string `json:"contentType"`
	Status      Status `json:"status"`
	StatusLabel string `json:"statusLabel"`
	StatusColor string `json:"statusColor"`
	ErrorDetail string `json:"errorDetail,omitempty"`
	PreviewURL  string `json:"previewUrl,omitempty"`
}
