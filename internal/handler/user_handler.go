package handler

import (
	"net/http"

	"bookstore/internal/middleware"
	"bookstore/internal/model"
	"bookstore/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserHandler handles admin user management
type UserHandler struct {
	service service.UserService
	log     *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(s service.UserService, log *zap.Logger) *UserHandler {
	return &UserHandler{service: s, log: log}
}

func (h *UserHandler) List(c *gin.Context) {
	page, err := parsePage(c)
	if err != nil {
		middleware.RespondError(c, h.log, err)
		return
	}
	users, err := h.service.ListUsers(c.Request.Context(), middleware.CurrentUser(c), page)
	if err != nil {
		middleware.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *UserHandler) Get(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		middleware.RespondError(c, h.log, err)
		return
	}
	user, err := h.service.GetUser(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		middleware.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) ChangeRole(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		middleware.RespondError(c, h.log, err)
		return
	}
	var req model.UpdateRoleRequest
	if err := bindJSON(c, &req); err != nil {
		middleware.RespondError(c, h.log, err)
		return
	}
	user, err := h.service.ChangeRole(c.Request.Context(), middleware.CurrentUser(c), id, req.Role)
	if err != nil {
		middleware.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// RegisterUserRoutes registers admin-only user routes
func (h *UserHandler) RegisterUserRoutes(rg *gin.RouterGroup, auth, admin gin.HandlerFunc) {
	users := rg.Group("/users", auth, admin)
	{
		users.GET("", h.List)
		users.GET("/:id", h.Get)
		users.PATCH("/:id/role", h.ChangeRole)
	}
}
