package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/moyoez/kbupload/tool"
	"github.com/moyoez/kbupload/types"
)

type StatusController struct {
	batch     Batch
	uploader  Submitter
	previews  PreviewLookup
	notifyWS  bool
	probeHost func(host string) (int64, error)
}

func NewStatusController(batch Batch, uploader Submitter, previews PreviewLookup, notifyWS bool) *StatusController {
	return &StatusController{
		batch:     batch,
		uploader:  uploader,
		previews:  previews,
		notifyWS:  notifyWS,
		probeHost: func(host string) (int64, error) {
			rtt, err := tool.ProbeHost(host)
			return rtt.Milliseconds(), err
		},
	}
}

// UserStatus returns running state for the web UI.
// GET /api/self/v1/status?probe=1 also pings the endpoint host.
func (ctrl *StatusController) UserStatus(c *gin.Context) {
	resp := types.UserStatusResponse{
		Running:   true,
		Uploading: ctrl.uploader.InProgress(),
		Files:     ctrl.batch.Len(),
		BaseURL:   ctrl.uploader.BaseURL(),
		NotifyWS:  ctrl.notifyWS,
	}
	if ctrl.previews != nil {
		resp.LivePreviews = ctrl.previews.Live()
	}
	if c.Query("probe") == "1" {
		resp.Probe = ctrl.probe()
	}
	c.JSON(http.StatusOK, resp)
}

func (ctrl *StatusController) probe() *types.ProbeResponse {
	host, err := tool.HostOf(ctrl.uploader.BaseURL())
	if err != nil {
		return &types.ProbeResponse{Error: err.Error()}
	}
	result := &types.ProbeResponse{Host: host}
	rtt, err := ctrl.probeHost(host)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Reachable = true
	result.RttMillis = rtt
	return result
}
