package types

// UserAddFilesRequest is the body of POST /api/self/v1/files.
type UserAddFilesRequest struct {
	Paths    []string `json:"paths,omitempty"`
	FileUrls []string `json:"fileUrls,omitempty"` // file:/// URLs
}

// UserAddFilesResult lists what was added and what could not be read.
type UserAddFilesResult struct {
	Added   int               `json:"added"`
	Total   int               `json:"total"`
	Skipped []UserSkippedFile `json:"skipped,omitempty"`
}

type UserSkippedFile struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// UserStatusResponse is returned by GET /api/self/v1/status.
type UserStatusResponse struct {
	Running      bool           `json:"running"`
	Uploading    bool           `json:"uploading"`
	Files        int            `json:"files"`
	BaseURL      string         `json:"baseUrl"`
	LivePreviews int            `json:"livePreviews"`
	NotifyWS     bool           `json:"notifyWsEnabled"`
	Probe        *ProbeResponse `json:"probe,omitempty"`
}

type ProbeResponse struct {
	Host      string `json:"host"`
	Reachable bool   `json:"reachable"`
	RttMillis int64  `json:"rttMillis,omitempty"`
	Error     string `json:"error,omitempty"`
}
