// Package middleware provides HTTP middleware components.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/metrics"
	"stockledger/pkg/logger"
)

// Recovery turns a handler panic into an INTERNAL_ERROR response. It sits
// outside ErrorHandler, whose post-processing never runs during a panic, so it
// renders the body itself. The stack goes to the log only.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			route := c.FullPath()
			metrics.APIPanics.WithLabelValues(route).Inc()
			logger.Error(c.Request.Context(), "handler panic",
				"route", route,
				"method", c.Request.Method,
				"panic", rec,
				"stack", string(debug.Stack()),
			)

			appErr := apperror.NewInternal(fmt.Errorf("panic in %s %s: %v", c.Request.Method, route, rec))
			_ = c.Error(appErr)
			c.AbortWithStatusJSON(appErr.HTTPStatus, gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
				"details": map[string]any{"request_id": c.GetString("request_id")},
			})
		}()
		c.Next()
	}
}
