package notification

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"herald/internal/logger"
	"herald/pkg/errors"
)

type Handler struct {
	service *Service
	logger  logger.Logger
}

func NewHandler(service *Service, log logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	notifications := group.Group("/notifications")
	{
		notifications.POST("/create", h.Create)
		notifications.POST("/search", h.Search)
		notifications.GET("/:id", h.Get)
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}

// Create accepts a raw notification object. The raw body is forwarded
// to the pipeline unmodified, so the handler reads it instead of
// binding into a struct.
func (h *Handler) Create(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "failed", "message": "unable to read request body"})
		return
	}

	doc, err := h.service.Create(c.Request.Context(), raw)
	if err != nil {
		h.logger.ErrorwCtx(c.Request.Context(), "Create failed", "error", err)
		c.JSON(errors.ToHTTPStatus(err), gin.H{"status": "failed", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, doc)
}

func (h *Handler) Search(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.handleError(c, errors.ErrValidation.WithCause(err))
		return
	}

	req, err := DecodeSearchRequest(raw)
	if err != nil {
		h.handleError(c, errors.ErrValidation.WithCause(err))
		return
	}

	result, err := h.service.Search(c.Request.Context(), req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) Get(c *gin.Context) {
	doc, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, doc)
}
