package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/moyoez/kbupload/tool"
)

type PreviewController struct {
	previews PreviewLookup
}

func NewPreviewController(previews PreviewLookup) *PreviewController {
	return &PreviewController{previews: previews}
}

// HandlePreview streams the payload behind a live preview token.
// GET /api/self/v1/preview/:token
func (ctrl *PreviewController) HandlePreview(c *gin.Context) {
	src, ok := ctrl.previews.Lookup(c.Param("token"))
	if !ok {
		c.JSON(http.StatusNotFound, tool.FastReturnError("Preview not found"))
		return
	}
	reader, err := src.Open()
	if err != nil {
		tool.DefaultLogger.Errorf("[Preview] Failed to open %s: %v", src.Name(), err)
		c.JSON(http.StatusInternalServerError, tool.FastReturnError("Failed to open preview"))
		return
	}
	defer func() {
		if err := reader.Close(); err != nil {
			tool.DefaultLogger.Errorf("[Preview] Failed to close %s: %v", src.Name(), err)
		}
	}()

	contentType := src.ContentType()
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, -1, contentType, reader, nil)
}
