package rules

import (
	"net/http"
	"strconv"

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
	rules := group.Group("/rules")
	{
		rules.GET("/:name", h.GetRule)
		rules.PUT("/:name", h.SetRule)
		rules.DELETE("/:name", h.DeleteRule)
		rules.GET("/:name/audit", h.GetRuleAudit)
	}
	group.GET("/audit/rules", h.GetAudit)
}

type SetRuleRequest struct {
	Expression string `json:"expression" binding:"required"`
	ChangedBy  string `json:"changedBy"`
}

func (h *Handler) handleError(c *gin.Context, err error) {
	h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	c.JSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
}

func (h *Handler) GetRule(c *gin.Context) {
	name := c.Param("name")
	expr, err := h.service.Get(c.Request.Context(), name)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"name": name, "expression": expr})
}

func (h *Handler) SetRule(c *gin.Context) {
	name := c.Param("name")

	var req SetRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	if err := h.service.Set(c.Request.Context(), name, req.Expression, req.ChangedBy); err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"name": name, "expression": req.Expression})
}

func (h *Handler) DeleteRule(c *gin.Context) {
	name := c.Param("name")
	changedBy := c.Query("changedBy")

	if err := h.service.Delete(c.Request.Context(), name, changedBy); err != nil {
		h.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) GetRuleAudit(c *gin.Context) {
	h.listAudit(c, c.Param("name"))
}

func (h *Handler) GetAudit(c *gin.Context) {
	h.listAudit(c, "")
}

func (h *Handler) listAudit(c *gin.Context, ruleName string) {
	limit := int64(100)
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, errors.ToErrorResponse(
				errors.ErrValidation.WithDetail("message", "limit must be a positive integer")))
			return
		}
		limit = parsed
	}

	entries, err := h.service.AuditTrail(c.Request.Context(), ruleName, limit)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}
