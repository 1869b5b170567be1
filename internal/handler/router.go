package handler

import (
	"fmt"

	"bookstore/internal/apperr"
	"bookstore/internal/middleware"
	"bookstore/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errRouteNotFound = apperr.New(apperr.NotFound, "Not Found")

// RouterDeps are the collaborators the HTTP layer is built from
type RouterDeps struct {
	Log            *zap.Logger
	AllowedOrigins []string
	TrustedProxies []string
	Limiter        *middleware.IPRateLimiter
	DB             Pinger

	Auth  service.AuthService
	Books service.BookService
	Users service.UserService
}

// NewRouter wires middleware and every route. Client IPs come from the
// socket peer unless the request arrived through one of TrustedProxies.
func NewRouter(d RouterDeps) (*gin.Engine, error) {
	RegisterValidators()

	router := gin.New()
	if err := router.SetTrustedProxies(d.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	router.Use(
		middleware.RequestID(),
		middleware.AccessLog(d.Log),
		middleware.Recovery(d.Log),
		middleware.CORS(d.AllowedOrigins),
	)
	router.NoRoute(func(c *gin.Context) {
		middleware.RespondError(c, d.Log, errRouteNotFound)
	})

	jwtAuthMW := middleware.JWTAuthMiddleware(d.Auth, d.Log)
	adminRoleMW := middleware.AdminMiddleware(d.Log)
	rateLimitMW := middleware.RateLimit(d.Limiter, d.Log)

	api := router.Group("")
	NewAuthHandler(d.Auth, d.Log).RegisterAuthRoutes(api, rateLimitMW, jwtAuthMW)
	NewBookHandler(d.Books, d.Log).RegisterBookRoutes(api, jwtAuthMW, adminRoleMW)
	NewUserHandler(d.Users, d.Log).RegisterUserRoutes(api, jwtAuthMW, adminRoleMW)
	NewHealthHandler(d.DB, d.Log).RegisterHealthRoutes(router)

	return router, nil
}
