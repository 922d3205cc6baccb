package controllers

import (
	"context"

	"github.com/moyoez/kbupload/preview"
	"github.com/moyoez/kbupload/selection"
	"github.com/moyoez/kbupload/types"
)

// Batch is the registry surface the control API drives.
type Batch interface {
	AddFiles(payloads ...selection.Payload) (int, error)
	RemoveFile(index int) (bool, error)
	Clear()
	Len() int
	Entries() []types.FileEntry
}

// Submitter runs uploads of the batch.
type Submitter interface {
	Submit(ctx context.Context) types.Report
	InProgress() bool
	BaseURL() string
}

// PreviewLookup resolves live preview tokens.
type PreviewLookup interface {
	Lookup(token string) (preview.Source, bool)
	Live() int
}
