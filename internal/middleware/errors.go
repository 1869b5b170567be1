package middleware

import (
	"errors"
	"net/http"

	"bookstore/internal/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorBody is the JSON shape of every error response
type ErrorBody struct {
	Detail    string `json:"detail"`
	ErrorType string `json:"error_type"`
}

// RespondError aborts the request with the error's status and a
// {"detail", "error_type"} body. The underlying cause is only logged, once,
// together with any extra fields.
func RespondError(c *gin.Context, log *zap.Logger, err error, extra ...zap.Field) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Wrap(apperr.Internal, "Internal server error", err)
	}
	status := appErr.Kind.HTTPStatus()

	fields := []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", status),
		zap.String("error_type", appErr.Kind.String()),
		zap.String("request_id", RequestIDFrom(c)),
		zap.Error(err),
	}
	fields = append(fields, extra...)
	if appErr.Kind.IsServerSide() {
		log.Error("request failed", fields...)
	} else {
		log.Debug("request rejected", fields...)
	}

	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorBody{Detail: appErr.Message, ErrorType: appErr.Kind.String()})
}
