package middleware

import (
	"slices"

	"bookstore/internal/model"
	"bookstore/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RoleMiddleware lets the request through only for the given roles. It must
// run after JWTAuthMiddleware.
func RoleMiddleware(log *zap.Logger, allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			RespondError(c, log, service.ErrNotAuthenticated)
			return
		}
		if !slices.Contains(allowedRoles, user.Role) {
			RespondError(c, log, service.ErrNotAdmin)
			return
		}
		c.Next()
	}
}

// AdminMiddleware checks if the user is an admin
func AdminMiddleware(log *zap.Logger) gin.HandlerFunc {
	return RoleMiddleware(log, model.RoleAdmin)
}
