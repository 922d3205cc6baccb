package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/moyoez/kbupload/tool"
	"github.com/skip2/go-qrcode"
)

const (
	defaultQRSize = 200
	maxQRSize     = 512
)

// GenerateQRCode returns a PNG QR code image.
// GET ?size=200x200&data=<url-encoded-content>
func GenerateQRCode(c *gin.Context) {
	data := c.Query("data")
	if data == "" {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("Missing required parameter: data"))
		return
	}
	writeQRCode(c, data, parseSize(c.Query("size")))
}

// HandleEntryQRCode renders the preview URL of one batch entry, for opening it on a phone.
// GET /api/self/v1/files/:index/qr
func (ctrl *FilesController) HandleEntryQRCode(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("Invalid index"))
		return
	}
	entries := ctrl.batch.Entries()
	if index < 0 || index >= len(entries) {
		c.JSON(http.StatusNotFound, tool.FastReturnError("File not found"))
		return
	}
	if entries[index].PreviewURL == "" {
		c.JSON(http.StatusNotFound, tool.FastReturnError("File has no preview"))
		return
	}
	writeQRCode(c, entries[index].PreviewURL, parseSize(c.Query("size")))
}

func writeQRCode(c *gin.Context, data string, size int) {
	if size <= 0 {
		size = defaultQRSize
	}
	if size > maxQRSize {
		size = maxQRSize
	}

	png, err := qrcode.Encode(data, qrcode.Medium, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, tool.FastReturnError("Failed to encode QR code: "+err.Error()))
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

// parseSize parses size from "200x200" or "200" and returns the pixel dimension.
func parseSize(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if idx := strings.Index(s, "x"); idx > 0 {
		s = strings.TrimSpace(s[:idx])
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}
