package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Recovery answers a panicking handler with 500 and the request id, which is
// also on the log line. withStack adds the stack and the sanitized request.
func Recovery(withStack bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logPanic(c, r, withStack)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":      "internal server error",
				"request_id": c.GetString(RequestIDKey),
			})
		}()
		c.Next()
	}
}

func logPanic(c *gin.Context, r interface{}, withStack bool) {
	entry := GetRequestLogger(c).WithFields(logrus.Fields{
		"panic": fmt.Sprint(r),
		"route": c.FullPath(),
	})
	if withStack {
		entry = entry.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    SanitizePath(c.Request.URL.Path),
			"headers": SanitizeHeaders(c.Request.Header),
			"stack":   string(debug.Stack()),
		})
	}
	entry.Error("handler panicked")
}
