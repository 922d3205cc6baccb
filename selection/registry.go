// Package selection holds the ordered batch of files chosen for upload.
package selection

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/moyoez/kbupload/tool"
	"github.com/moyoez/kbupload/types"
)

const unknownErrorDetail = "An unknown error occurred"

var (
	ErrIndexOutOfRange  = errors.New("file index out of range")
	ErrUploadInProgress = errors.New("cannot add files while an upload is in progress")
)

// Payload is a selected file. Only Open's bytes are ever transmitted.
type Payload interface {
	Name() string
	Size() int64
	ContentType() string
	Open() (io.ReadCloser, error)
}

// PreviewHandle is a revocable preview reference owned by one entry.
type PreviewHandle interface {
	URL() string
	Release()
}

// PreviewAllocator creates a preview for an image payload.
type PreviewAllocator func(p Payload) PreviewHandle

type entry struct {
	payload     Payload
	displayName string
	sizeBytes   int64
	contentType string
	status      types.Status
	errorDetail string
	preview     PreviewHandle
}

func (e *entry) releasePreview() {
	if e.preview != nil {
		e.preview.Release()
		e.preview = nil
	}
}

// Registry is the batch. Every exported method holds the lock for its whole
// body, so callers never observe a partially applied change.
type Registry struct {
	mu           sync.Mutex
	entries      []*entry
	allocPreview PreviewAllocator
}

// NewRegistry creates an empty batch. A nil allocator disables previews.
func NewRegistry(allocPreview PreviewAllocator) *Registry {
	return &Registry{allocPreview: allocPreview}
}

// AddFiles appends one Pending entry per payload, in order, and returns how many were added.
// While any entry is Uploading nothing is added and ErrUploadInProgress is returned.
func (r *Registry) AddFiles(payloads ...Payload) (int, error) {
	if len(payloads) == 0 {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.uploadingLocked() {
		tool.DefaultLogger.Warnf("[Registry] Refusing %d files while an upload is in progress", len(payloads))
		return 0, ErrUploadInProgress
	}

	added := 0
	for _, p := range payloads {
		if p == nil {
			continue
		}
		e := &entry{
			payload:     p,
			displayName: p.Name(),
			sizeBytes:   max(p.Size(), 0),
			contentType: p.ContentType(),
			status:      types.StatusPending,
		}
		if r.allocPreview != nil && tool.IsImageContentType(e.contentType) {
			e.preview = r.allocPreview(p)
		}
		r.entries = append(r.entries, e)
		added++
	}

	tool.DefaultLogger.Debugf("[Registry] Added %d files, batch now holds %d", added, len(r.entries))
	return added, nil
}

func (r *Registry) uploadingLocked() bool {
	for _, e := range r.entries {
		if e.status == types.StatusUploading {
			return true
		}
	}
	return false
}

// BeginUpload moves every entry to Uploading and returns their payloads in batch
// order, in one step. No entry can be added between the snapshot and the transition.
func (r *Registry) BeginUpload() []Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Payload, len(r.entries))
	for i, e := range r.entries {
		e.status = types.StatusUploading
		e.errorDetail = ""
		out[i] = e.payload
	}
	if len(out) > 0 {
		tool.DefaultLogger.Debugf("[Registry] Set %d files to %s", len(out), types.StatusUploading)
	}
	return out
}

// RemoveFile drops the entry at index and releases its preview. An Uploading
// entry is left in place and removed is false; no error is returned for it.
func (r *Registry) RemoveFile(index int) (removed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if index < 0 || index >= len(r.entries) {
		return false, fmt.Errorf("%w: %d (batch holds %d)", ErrIndexOutOfRange, index, len(r.entries))
	}
	e := r.entries[index]
	if !e.status.Removable() {
		tool.DefaultLogger.Debugf("[Registry] Ignoring removal of %s while it is uploading", e.displayName)
		return false, nil
	}

	last := len(r.entries) - 1
	copy(r.entries[index:], r.entries[index+1:])
	r.entries[last] = nil
	r.entries = r.entries[:last]
	e.releasePreview()
	tool.DefaultLogger.Debugf("[Registry] Removed %s at %d", e.displayName, index)
	return true, nil
}

// SetAllStatus overwrites the status of every entry. errorDetail is kept only for
// StatusError; an empty detail there becomes a generic message.
func (r *Registry) SetAllStatus(status types.Status, errorDetail string) {
	if status != types.StatusError {
		errorDetail = ""
	} else if errorDetail == "" {
		errorDetail = unknownErrorDetail
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		e.status = status
		e.errorDetail = errorDetail
	}
	tool.DefaultLogger.Debugf("[Registry] Set %d files to %s", len(r.entries), status)
}

// Clear empties the batch and releases every preview.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		e.releasePreview()
	}
	r.entries = nil
}

// ClearDone is Clear restricted to entries whose status is Done. Entries added
// after a successful upload survive the purge. It returns how many were removed.
func (r *Registry) ClearDone() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.entries[:0]
	purged := 0
	for _, e := range r.entries {
		if e.status == types.StatusDone {
			e.releasePreview()
			purged++
			continue
		}
		kept = append(kept, e)
	}
	clear(r.entries[len(kept):])
	r.entries = kept
	if purged > 0 {
		tool.DefaultLogger.Debugf("[Registry] Purged %d uploaded files", purged)
	}
	return purged
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Payloads returns the payloads in batch order.
func (r *Registry) Payloads() []Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Payload, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.payload
	}
	return out
}

// Entries returns a rendered snapshot of the batch.
func (r *Registry) Entries() []types.FileEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.FileEntry, len(r.entries))
	for i, e := range r.entries {
		view := types.FileEntry{
			Index:       i,
			Key:         fmt.Sprintf("%s-%d", e.displayName, i),
			DisplayName: e.displayName,
			SizeBytes:   e.sizeBytes,
			SizeText:    tool.FormatFileSize(e.sizeBytes),
			ContentType: e.contentType,
			Status:      e.status,
			StatusLabel: e.status.Label(),
			StatusColor: e.status.Color(),
			ErrorDetail: e.errorDetail,
		}
		if e.preview != nil {
			view.PreviewURL = e.preview.URL()
		}
		out[i] = view
	}
	return out
}
