// Package handlers contains the HTTP handlers for the Industry Map API
package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/quantbots/industrymapapi/internal/models"
	"github.com/quantbots/industrymapapi/internal/service"
	"github.com/quantbots/industrymapapi/pkg/utils/response"
)

// MappingHandler serves the mapping read endpoints
type MappingHandler struct {
	mappingService *service.MappingService
}

// NewMappingHandler creates a new mapping handler
func NewMappingHandler(db *gorm.DB, redisClient *redis.Client) *MappingHandler {
	return &MappingHandler{
		mappingService: service.NewMappingService(db, redisClient),
	}
}

// QueryMappings returns one page of mappings matching the query filters
func (h *MappingHandler) QueryMappings(c echo.Context) error {
	var params models.QueryMappingsParams
	if err := c.Bind(&params); err != nil {
		return response.ErrorResponse(c, http.StatusBadRequest, "InputException", "Invalid query parameters")
	}

	if params.Status != "" &&
		params.Status != models.MappingStatusPending &&
		params.Status != models.MappingStatusConfirmed {
		return response.ErrorResponse(c, http.StatusBadRequest, "InputException", "`status` must be `pending` or `confirmed`")
	}

	rows, total, err := h.mappingService.QueryMappings(params)
	if err != nil {
		return response.ErrorResponse(c, http.StatusInternalServerError, "ServerException", err.Error())
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize < 1 || pageSize > 500 {
		pageSize = 50
	}

	return response.PaginatedResponse(c, rows, total, page, pageSize)
}

// GetStatistics returns the aggregate mapping statistics
func (h *MappingHandler) GetStatistics(c echo.Context) error {
	stats, err := h.mappingService.GetStatistics()
	if err != nil {
		return response.ErrorResponse(c, http.StatusInternalServerError, "ServerException", err.Error())
	}
	return response.SuccessResponse(c, stats)
}
