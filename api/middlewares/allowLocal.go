package middlewares

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/moyoez/kbupload/tool"
)

// OnlyAllowLocal rejects callers outside the loopback range. Forwarding headers are ignored.
func OnlyAllowLocal(c *gin.Context) {
	ip := net.ParseIP(c.RemoteIP())
	if ip != nil && ip.IsLoopback() {
		c.Next()
		return
	}
	tool.DefaultLogger.Warnf("[Server] Refused %s %s from %s", c.Request.Method, c.Request.URL.Path, c.RemoteIP())
	c.AbortWithStatusJSON(http.StatusForbidden, tool.FastReturnError("Forbidden"))
}
