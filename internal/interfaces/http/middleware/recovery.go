package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"doc-qa-api/pkg/errors"
	"doc-qa-api/pkg/logger"
)

// Recovery Panic 恢复中间件。
// 响应体与 dto.ErrorResponse 同构；流式响应已写出时只能中断连接。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			logger.Error(c.Request.Context(), "panic recovered",
				fmt.Errorf("%v", rec),
				"stack", string(debug.Stack()),
				"route", c.FullPath(),
				"method", c.Request.Method,
				"streaming", c.Writer.Written(),
			)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code":    http.StatusInternalServerError,
				"message": errors.ErrInternalError.Message,
				"error": gin.H{
					"error_code": errors.CodeInternalError,
				},
				"trace_id": c.GetString("trace_id"),
			})
		}()

		c.Next()
	}
}
