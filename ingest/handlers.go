package ingest

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/moyoez/kbupload/tool"
	"github.com/moyoez/kbupload/types"
)

const filesField = "files"

// HandleUpload stores every part of the files field.
// POST /upload
func (s *Server) HandleUpload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil || len(form.File[filesField]) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Field required: files"})
		return
	}
	headers := form.File[filesField]
	tool.DefaultLogger.Infof("[Ingest] Received %d files from %s", len(headers), c.ClientIP())

	results := make([]types.IngestFileResult, 0, len(headers))
	summary := types.IngestSummary{Total: len(headers)}
	for _, header := range headers {
		result := s.saveOne(c, header)
		switch result.Status {
		case "processed":
			summary.Successful++
		case "error":
			summary.Failed++
		}
		results = append(results, result)
	}

	c.JSON(http.StatusOK, types.IngestResponse{
		Message: fmt.Sprintf("Processed %d/%d files successfully", summary.Successful, summary.Total),
		Files:   results,
		Summary: summary,
	})
}

func (s *Server) saveOne(c *gin.Context, header *multipart.FileHeader) types.IngestFileResult {
	original := header.Filename
	result := types.IngestFileResult{OriginalFilename: original}

	ext := strings.ToLower(filepath.Ext(original))
	if !tool.IsAcceptedExtension(original, s.accepted) {
		result.Status = "error"
		result.Message = "File type not supported: " + ext
		tool.DefaultLogger.Warnf("[Ingest] Rejected %s: unsupported type %q", original, ext)
		return result
	}

	path, written, err := s.store(c, header)
	if err != nil {
		result.Status = "error"
		result.Message = "Unexpected error: " + err.Error()
		tool.DefaultLogger.Errorf("[Ingest] Failed to save %s: %v", original, err)
		return result
	}
	result.SavedFilename = filepath.Base(path)
	result.SavedPath = path
	result.Size = fmt.Sprintf("%.2f KB", float64(written)/1024)
	result.Status = "saved"
	tool.DefaultLogger.Infof("[Ingest] Saved %s as %s (%s)", original, result.SavedFilename, result.Size)

	if s.process != nil {
		if err := s.process(c.Request.Context(), path); err != nil {
			result.Status = "error"
			result.Message = "Unexpected error: " + err.Error()
			tool.DefaultLogger.Errorf("[Ingest] Processing %s failed: %v", result.SavedFilename, err)
			return result
		}
	}
	result.Status = "processed"
	result.Message = "Successfully added to knowledge base"
	return result
}

// store writes the part to the first free name under the upload dir.
func (s *Server) store(c *gin.Context, header *multipart.FileHeader) (string, int64, error) {
	src, err := header.Open()
	if err != nil {
		return "", 0, fmt.Errorf("failed to open part: %w", err)
	}
	defer src.Close()

	name := filepath.Base(filepath.Clean("/" + header.Filename))
	s.saveMu.Lock()
	path := tool.NextAvailablePath(s.dir, name)
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	s.saveMu.Unlock()
	if err != nil {
		return "", 0, fmt.Errorf("failed to create %s: %w", path, err)
	}

	written, copyErr := tool.CopyWithContext(c.Request.Context(), dst, src)
	closeErr := dst.Close()
	if copyErr != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("failed to write %s: %w", path, copyErr)
	}
	if closeErr != nil {
		return "", 0, fmt.Errorf("failed to close %s: %w", path, closeErr)
	}
	return path, written, nil
}

// HandleListFiles lists saved files.
// GET /files
func (s *Server) HandleListFiles(c *gin.Context) {
	files, err := s.listFiles()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, types.IngestListResponse{Files: files, Count: len(files)})
}

// HandleHealth reports the upload dir and how many entries it holds.
// GET /health
func (s *Server) HandleHealth(c *gin.Context) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, types.IngestHealthResponse{
		Status:     "healthy",
		UploadDir:  s.dir,
		FilesCount: len(entries),
	})
}

func (s *Server) listFiles() ([]types.IngestListedFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload dir: %w", err)
	}
	files := make([]types.IngestListedFile, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, types.IngestListedFile{
			Name:     entry.Name(),
			Size:     fmt.Sprintf("%.2f KB", float64(info.Size())/1024),
			Modified: float64(info.ModTime().UnixNano()) / 1e9,
		})
	}
	return files, nil
}
