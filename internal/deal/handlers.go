package deal

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/accordohq/accordo/internal/validation"
	"github.com/accordohq/accordo/internal/vendorsim"
)

// Handler provides HTTP endpoints for deals and turn processing.
type Handler struct {
	service *Service
}

// NewHandler creates a new deal handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up deal routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/deals", h.CreateDeal)
	r.GET("/deals", h.ListDeals)
	r.GET("/deals/:id", h.GetDeal)
	r.DELETE("/deals/:id", h.DeleteDeal)
	r.POST("/deals/:id/archive", h.ArchiveDeal)
	r.POST("/deals/:id/restore", h.RestoreDeal)
	r.POST("/deals/:id/reset", h.ResetDeal)

	r.POST("/deals/:id/start", h.StartConversation)
	r.POST("/deals/:id/messages", h.ProcessTurn)
	r.POST("/deals/:id/turns", h.ProcessDirectTurn)
	r.POST("/deals/:id/simulate", h.Simulate)
	r.GET("/deals/:id/messages", h.ListMessages)
	r.GET("/deals/:id/explain", h.Explain)
}

// CreateDeal handles POST /v1/deals
func (h *Handler) CreateDeal(c *gin.Context) {
	var req CreateDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if errs := validation.Validate(
		validation.Required("name", req.Name),
		validation.MaxLength("name", req.Name, 255),
		validation.MaxLength("vendorName", req.VendorName, 255),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}

	d, err := h.service.CreateDeal(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_deal",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"deal": d})
}

// ListDeals handles GET /v1/deals
func (h *Handler) ListDeals(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	includeArchived := c.Query("archived") == "true"

	deals, next, more, err := h.service.ListDealsPage(c.Request.Context(), includeArchived, limit, c.Query("cursor"))
	if err != nil {
		if errors.Is(err, ErrInvalidCursor) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_cursor",
				"message": "Invalid pagination cursor",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	resp := gin.H{"deals": deals, "count": len(deals), "has_more": more}
	if next != "" {
		resp["next_cursor"] = next
	}
	c.JSON(http.StatusOK, resp)
}

// GetDeal handles GET /v1/deals/:id
func (h *Handler) GetDeal(c *gin.Context) {
	d, err := h.service.GetDeal(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deal": d})
}

// DeleteDeal handles DELETE /v1/deals/:id
func (h *Handler) DeleteDeal(c *gin.Context) {
	if err := h.service.DeleteDeal(c.Request.Context(), c.Param("id")); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ArchiveDeal handles POST /v1/deals/:id/archive
func (h *Handler) ArchiveDeal(c *gin.Context) {
	d, err := h.service.ArchiveDeal(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deal": d})
}

// RestoreDeal handles POST /v1/deals/:id/restore
func (h *Handler) RestoreDeal(c *gin.Context) {
	d, err := h.service.RestoreDeal(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deal": d})
}

// ResetDeal handles POST /v1/deals/:id/reset
func (h *Handler) ResetDeal(c *gin.Context) {
	d, err := h.service.ResetDeal(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deal": d})
}

// StartConversation handles POST /v1/deals/:id/start
func (h *Handler) StartConversation(c *gin.Context) {
	result, err := h.service.StartConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ProcessTurn handles POST /v1/deals/:id/messages (conversation mode)
func (h *Handler) ProcessTurn(c *gin.Context) {
	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	result, err := h.service.ProcessTurn(c.Request.Context(), c.Param("id"), validation.SanitizeMessage(req.Text))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ProcessDirectTurn handles POST /v1/deals/:id/turns (audit mode)
func (h *Handler) ProcessDirectTurn(c *gin.Context) {
	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	result, err := h.service.ProcessDirectTurn(c.Request.Context(), c.Param("id"), validation.SanitizeMessage(req.Text))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Simulate handles POST /v1/deals/:id/simulate
func (h *Handler) Simulate(c *gin.Context) {
	var req SimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	result, err := h.service.Simulate(c.Request.Context(), c.Param("id"), vendorsim.Scenario(req.Scenario))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListMessages handles GET /v1/deals/:id/messages
func (h *Handler) ListMessages(c *gin.Context) {
	msgs, err := h.service.ListMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs, "count": len(msgs)})
}

// Explain handles GET /v1/deals/:id/explain
func (h *Handler) Explain(c *gin.Context) {
	explain, err := h.service.Explain(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"explainability": explain})
}

func (h *Handler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrDealNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Deal not found",
		})
	case errors.Is(err, ErrDealTerminal):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "deal_terminal",
			"message": err.Error() + ". Reset to continue.",
		})
	case errors.Is(err, ErrDealArchived), errors.Is(err, ErrDealNotArchived):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "invalid_state",
			"message": err.Error(),
		})
	case errors.Is(err, ErrNoExplainability):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "no_explainability",
			"message": "No decision has been recorded for this deal yet",
		})
	case errors.Is(err, ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Message text must not be empty",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
	}
}
