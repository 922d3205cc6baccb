package tool

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const defaultContentType = "application/octet-stream"

// LocalFile is a file on disk selected for upload. Name, size and content type are
// captured when it is opened for selection and never change afterwards.
type LocalFile struct {
	path        string
	name        string
	size        int64
	contentType string
}

func (f *LocalFile) Name() string        { return f.name }
func (f *LocalFile) Size() int64         { return f.size }
func (f *LocalFile) ContentType() string { return f.contentType }
func (f *LocalFile) Path() string        { return f.path }

func (f *LocalFile) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}

// MemoryFile is an in-memory payload, e.g. a file received by the control API.
type MemoryFile struct {
	name        string
	contentType string
	data        []byte
}

// NewMemoryFile copies nothing; data must not be modified afterwards.
// An empty contentType is sniffed from data.
func NewMemoryFile(name, contentType string, data []byte) *MemoryFile {
	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}
	return &MemoryFile{name: name, contentType: contentType, data: data}
}

func (f *MemoryFile) Name() string        { return f.name }
func (f *MemoryFile) Size() int64         { return int64(len(f.data)) }
func (f *MemoryFile) ContentType() string { return f.contentType }

func (f *MemoryFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

// OpenLocalFile stats source (a plain path or a file:// URL) and returns a payload for it.
func OpenLocalFile(source string) (*LocalFile, error) {
	filePath, err := ResolveFileSource(source)
	if err != nil {
		return nil, err
	}
	fileName, fileSize, fileType, err := GetFileInfoFromPath(filePath)
	if err != nil {
		return nil, err
	}
	DefaultLogger.Debugf("Selected %s (%d bytes, %s)", fileName, fileSize, fileType)
	return &LocalFile{
		path:        filePath,
		name:        fileName,
		size:        fileSize,
		contentType: fileType,
	}, nil
}

// ResolveFileSource turns a path or file:// URL into a local path.
func ResolveFileSource(source string) (string, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return "", fmt.Errorf("file source must not be empty")
	}
	if !strings.Contains(source, "://") {
		return source, nil
	}
	parsedUrl, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("invalid fileUrl: %w", err)
	}
	if parsedUrl.Scheme != "file" {
		return "", fmt.Errorf("only file:// protocol is supported for fileUrl")
	}
	if parsedUrl.Path == "" {
		return "", fmt.Errorf("fileUrl has no path: %s", source)
	}
	return parsedUrl.Path, nil
}

// GetFileInfoFromPath reads file information from local filesystem
// Returns fileName, size, fileType, error
func GetFileInfoFromPath(filePath string) (string, int64, string, error) {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return "", 0, "", fmt.Errorf("failed to stat file: %w", err)
	}
	if fileInfo.IsDir() {
		return "", 0, "", fmt.Errorf("path is a directory, not a file")
	}

	return filepath.Base(filePath), fileInfo.Size(), DetectContentType(filePath), nil
}

// DetectContentType sniffs the file content and falls back to the extension.
func DetectContentType(filePath string) string {
	if mt, err := mimetype.DetectFile(filePath); err == nil && mt.String() != defaultContentType {
		return mt.String()
	}
	if byExt := mime.TypeByExtension(filepath.Ext(filePath)); byExt != "" {
		return byExt
	}
	return defaultContentType
}

// IsImageContentType reports whether contentType names an image/* type.
func IsImageContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}
