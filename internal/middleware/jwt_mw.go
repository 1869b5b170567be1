package middleware

import (
	"strings"

	"bookstore/internal/model"
	"bookstore/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const AuthUserKey = "authUser"

// JWTAuthMiddleware resolves the bearer token to an active user and stores
// it in the context for handlers.
func JWTAuthMiddleware(authService service.AuthService, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			RespondError(c, log, service.ErrNotAuthenticated)
			return
		}

		user, err := authService.Authenticate(c.Request.Context(), token)
		if err != nil {
			RespondError(c, log, err)
			return
		}

		c.Set(AuthUserKey, user)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// CurrentUser returns the user stored by JWTAuthMiddleware, or nil
func CurrentUser(c *gin.Context) *model.User {
	v, exists := c.Get(AuthUserKey)
	if !exists {
		return nil
	}
	user, _ := v.(*model.User)
	return user
}
