package middleware

import (
	"fmt"

	"bookstore/internal/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery turns a handler panic into a logged 500 JSON response
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				c.Header("Connection", "close")
				RespondError(c, log, apperr.Wrap(apperr.Internal, "Internal server error", fmt.Errorf("panic: %v", r)),
					zap.Any("panic", r),
					zap.Stack("stack"),
				)
			}
		}()
		c.Next()
	}
}
