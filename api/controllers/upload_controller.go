package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/moyoez/kbupload/api/models"
	"github.com/moyoez/kbupload/tool"
	"github.com/moyoez/kbupload/types"
)

type UploadController struct {
	uploader Submitter
	results  *models.ResultStore
}

func NewUploadController(uploader Submitter, results *models.ResultStore) *UploadController {
	return &UploadController{uploader: uploader, results: results}
}

// HandleUpload submits the whole batch and waits for the outcome.
// POST /api/self/v1/upload
func (ctrl *UploadController) HandleUpload(c *gin.Context) {
	report := ctrl.uploader.Submit(c.Request.Context())
	if report.Outcome == types.OutcomeNoop && report.NoopReason == types.NoopInProgress {
		c.JSON(http.StatusConflict, tool.FastReturnErrorWithData("An upload is already in progress", map[string]any{
			"report": report,
		}))
		return
	}
	ctrl.results.Save(report)
	c.JSON(http.StatusOK, report)
}

// HandleResult returns a recent report by id, or the latest one for id "latest".
// GET /api/self/v1/results/:id
func (ctrl *UploadController) HandleResult(c *gin.Context) {
	id := c.Param("id")
	var (
		report types.Report
		ok     bool
	)
	if id == "latest" {
		report, ok = ctrl.results.Latest()
	} else {
		report, ok = ctrl.results.Lookup(id)
	}
	if !ok {
		c.JSON(http.StatusNotFound, tool.FastReturnError("Report not found or expired"))
		return
	}
	c.JSON(http.StatusOK, report)
}
