package handler

import (
	"net/http"

	"bookstore/internal/middleware"
	"bookstore/internal/model"
	"bookstore/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BookHandler handles the book catalogue
type BookHandler struct {
	service service.BookService
	log     *zap.Logger
}

// NewBookHandler creates a new BookHandler
func NewBookHandler(s service.BookService, log *zap.Logger) *BookHandler {
	return &BookHandler{service: s, log: log}
}

func (h *BookHandler) List(c *gin.Context) {
	page, err := parsePage(c)
	if err != nil {
		middleware.RespondError(c, h.log, err)
		return
	}
	books, err := h.service.ListBooks(c.Request.Context(), page)
	if err != nil {
		middleware.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

func (h *BookHandler) Get(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		middleware.RespondError(c, h.log, err)
		return
	}
	book, err := h.service.GetBook(c.Request.Context(), id)
	if err != nil {
		middleware.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h *BookHandler) Create(c *gin.Context) {
	var req model.CreateBookRequest
	if err := bindJSON(c, &req); err != nil {
		middleware.RespondError(c, h.log, err)
		return
	}
	book, err := h.service.CreateBook(c.Request.Context(), req, middleware.CurrentUser(c))
	if err != nil {
		middleware.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, book)
}

func (h *BookHandler) Update(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		middleware.RespondError(c, h.log, err)
		return
	}
	var req model.UpdateBookRequest
	if err := bindJSON(c, &req); err != nil {
		middleware.RespondError(c, h.log, err)
		return
	}
	book, err := h.service.UpdateBook(c.Request.Context(), id, req, middleware.CurrentUser(c))
	if err != nil {
		middleware.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h *BookHandler) Delete(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		middleware.RespondError(c, h.log, err)
		return
	}
	if err := h.service.DeleteBook(c.Request.Context(), id, middleware.CurrentUser(c)); err != nil {
		middleware.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Book deleted successfully"})
}

// RegisterBookRoutes registers book routes. Reads are public.
func (h *BookHandler) RegisterBookRoutes(rg *gin.RouterGroup, auth, admin gin.HandlerFunc) {
	books := rg.Group("/books")
	{
		books.GET("", h.List)
		books.GET("/:id", h.Get)
		books.POST("", auth, h.Create)
		books.PUT("/:id", auth, h.Update)
		books.DELETE("/:id", auth, admin, h.Delete)
	}
}
