package types

// IngestFileResult is the per-file entry in the ingestion response.
type IngestFileResult struct {
	OriginalFilename string `json:"original_filename"`
	SavedFilename    string `json:"saved_filename,omitempty"`
	SavedPath        string `json:"saved_path,omitempty"`
	Size             string `json:"size,omitempty"`
	Status           string `json:"status"`
	Message          string `json:"message,omitempty"`
}

type IngestSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// IngestResponse is returned by POST /upload on the ingestion endpoint.
type IngestResponse struct {
	Message string             `json:"message"`
	Files   []IngestFileResult `json:"files"`
	Summary IngestSummary      `json:"summary"`
}

type IngestListedFile struct {
	Name     string  `json:"name"`
	Size     string  `json:"size"`
	Modified float64 `json:"modified"`
}

type IngestListResponse struct {
	Files []IngestListedFile `json:"files"`
	Count int                `json:"count"`
}

type IngestHealthResponse struct {
	Status     string `json:"status"`
	UploadDir  string `json:"upload_dir"`
	FilesCount int    `json:"files_count"`
}
