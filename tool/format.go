package tool

import (
	"math"
	"path/filepath"
	"strconv"
	"strings"
)

// AcceptedExtensions is the selection filter hint. The ingestion side decides what it really accepts.
var AcceptedExtensions = []string{".pdf", ".doc", ".docx", ".txt", ".csv"}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize renders bytes as "0 Bytes", "500 Bytes", "1.46 KB", ...
// Values are rounded to two decimals with trailing zeros dropped. GB is the largest unit.
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	const k = 1024.0
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(k)))
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}
	v := float64(bytes) / math.Pow(k, float64(i))
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}

// IsAcceptedExtension reports whether name ends in one of allowed (case-insensitive).
// A nil allowed list falls back to AcceptedExtensions.
func IsAcceptedExtension(name string, allowed []string) bool {
	if allowed == nil {
		allowed = AcceptedExtensions
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, a := range allowed {
		if strings.ToLower(a) == ext {
			return true
		}
	}
	return false
}

// AcceptAttribute joins the list the way a file picker expects it: ".pdf,.doc,...".
func AcceptAttribute(allowed []string) string {
	if allowed == nil {
		allowed = AcceptedExtensions
	}
	return strings.Join(allowed, ",")
}
