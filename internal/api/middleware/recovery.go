package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/yatube/pkg/logger"
)

const ctxSentryHub = "sentry_hub"

// Recovery turns a panic into a 500 page, logs it and reports it to sentry.
// Every request gets its own hub so scope data does not leak across requests.
func Recovery(errorTemplate string) gin.HandlerFunc {
	return func(c *gin.Context) {
		hub := sentry.CurrentHub().Clone()
		hub.Scope().SetRequest(c.Request)
		c.Set(ctxSentryHub, hub)

		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			hub.Scope().SetTag("request_id", GetRequestID(c))
			hub.RecoverWithContext(c.Request.Context(), rec)
			logger.Error("panic recovered",
				zap.String("request_id", GetRequestID(c)),
				zap.String("path", c.Request.URL.Path),
				zap.String("panic", fmt.Sprint(rec)),
				zap.Stack("stack"),
			)
			c.HTML(http.StatusInternalServerError, errorTemplate, gin.H{"RequestID": GetRequestID(c), "Year": time.Now().Year()})
			c.Abort()
		}()
		c.Next()
	}
}

// CaptureError reports err on the request's hub, if one is attached.
func CaptureError(c *gin.Context, err error) {
	if v, ok := c.Get(ctxSentryHub); ok {
		if hub, ok := v.(*sentry.Hub); ok {
			hub.CaptureException(err)
			return
		}
	}
	sentry.CaptureException(err)
}
