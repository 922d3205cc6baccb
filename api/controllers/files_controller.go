package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/moyoez/kbupload/selection"
	"github.com/moyoez/kbupload/tool"
	"github.com/moyoez/kbupload/types"
)

type FilesController struct {
	batch    Batch
	uploader Submitter
	accepted []string
}

func NewFilesController(batch Batch, uploader Submitter, accepted []string) *FilesController {
	if len(accepted) == 0 {
		accepted = tool.AcceptedExtensions
	}
	return &FilesController{batch: batch, uploader: uploader, accepted: accepted}
}

// HandleList returns the rendered batch.
// GET /api/self/v1/files
func (ctrl *FilesController) HandleList(c *gin.Context) {
	entries := ctrl.batch.Entries()
	c.JSON(http.StatusOK, gin.H{
		"files":     entries,
		"total":     len(entries),
		"uploading": ctrl.uploader.InProgress(),
		"accept":    tool.AcceptAttribute(ctrl.accepted),
	})
}

// HandleAdd selects local files by path or file:// URL.
// POST /api/self/v1/files
func (ctrl *FilesController) HandleAdd(c *gin.Context) {
	if ctrl.uploader.InProgress() {
		c.JSON(http.StatusConflict, tool.FastReturnError("Cannot add files while an upload is in progress"))
		return
	}

	var request types.UserAddFilesRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("Invalid request body: "+err.Error()))
		return
	}
	sources := append(append([]string{}, request.Paths...), request.FileUrls...)
	if len(sources) == 0 {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("At least one path or fileUrl is required"))
		return
	}

	result := types.UserAddFilesResult{}
	payloads := make([]selection.Payload, 0, len(sources))
	for _, source := range sources {
		file, err := tool.OpenLocalFile(source)
		if err != nil {
			tool.DefaultLogger.Warnf("[Registry] Skipping %s: %v", source, err)
			result.Skipped = append(result.Skipped, types.UserSkippedFile{Source: source, Error: err.Error()})
			continue
		}
		if !tool.IsAcceptedExtension(file.Name(), ctrl.accepted) {
			tool.DefaultLogger.Warnf("[Registry] %s is outside the accepted types (%s)", file.Name(), tool.AcceptAttribute(ctrl.accepted))
		}
		payloads = append(payloads, file)
	}

	added, err := ctrl.batch.AddFiles(payloads...)
	if errors.Is(err, selection.ErrUploadInProgress) {
		c.JSON(http.StatusConflict, tool.FastReturnError("Cannot add files while an upload is in progress"))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, tool.FastReturnError(err.Error()))
		return
	}
	result.Added = added
	result.Total = ctrl.batch.Len()
	c.JSON(http.StatusOK, tool.FastReturnSuccessWithData(result))
}

// HandleRemove drops one entry. Uploading entries are left alone.
// DELETE /api/self/v1/files/:index
func (ctrl *FilesController) HandleRemove(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("Invalid index"))
		return
	}
	if ctrl.uploader.InProgress() {
		c.JSON(http.StatusConflict, tool.FastReturnError("Cannot remove files while an upload is in progress"))
		return
	}

	removed, err := ctrl.batch.RemoveFile(index)
	if errors.Is(err, selection.ErrIndexOutOfRange) {
		c.JSON(http.StatusNotFound, tool.FastReturnError(err.Error()))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, tool.FastReturnError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed, "total": ctrl.batch.Len()})
}

// HandleClear empties the batch and releases every preview.
// DELETE /api/self/v1/files
func (ctrl *FilesController) HandleClear(c *gin.Context) {
	if ctrl.uploader.InProgress() {
		c.JSON(http.StatusConflict, tool.FastReturnError("Cannot clear files while an upload is in progress"))
		return
	}
	ctrl.batch.Clear()
	c.JSON(http.StatusOK, tool.FastReturnSuccess())
}
