package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/crimecity3k/crimemap-backend-go/internal/database"
	"github.com/crimecity3k/crimemap-backend-go/internal/models"
	"github.com/crimecity3k/crimemap-backend-go/internal/service"
	"github.com/crimecity3k/crimemap-backend-go/pkg/response"
)

// EventHandler handles HTTP requests for the drill-down API
type EventHandler struct {
	service *service.EventService
}

// NewEventHandler creates a new event handler
func NewEventHandler(service *service.EventService) *EventHandler {
	return &EventHandler{service: service}
}

// GetEvents handles GET /api/v1/events
func (h *EventHandler) GetEvents(c *gin.Context) {
	var filter models.EventFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	result, err := h.service.Query(filter)
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetTypes handles GET /api/v1/types
func (h *EventHandler) GetTypes(c *gin.Context) {
	hierarchy, err := h.service.TypeHierarchy()
	if err != nil {
		h.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, hierarchy)
}

// Health handles GET /health. The service stays healthy while the event
// store is warming up; it just reports zero events.
func (h *EventHandler) Health(c *gin.Context) {
	count, err := h.service.EventCount()
	if err != nil && !errors.Is(err, database.ErrNotInitialized) {
		response.InternalError(c, "Health check failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"events_count": count,
	})
}

// renderError separates "you asked wrong" from "try again later".
func (h *EventHandler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidQuery):
		response.BadRequest(c, err.Error())
	case errors.Is(err, database.ErrNotInitialized):
		response.ServiceUnavailable(c, "Event store not initialized")
	default:
		response.InternalError(c, "Query failed")
	}
}
