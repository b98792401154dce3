package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/quantbots/industrymapapi/internal/service"
	"github.com/quantbots/industrymapapi/pkg/utils/response"
)

// TaxonomyHandler serves the taxonomy endpoints
type TaxonomyHandler struct {
	taxonomyService *service.TaxonomyService
}

// NewTaxonomyHandler creates a new taxonomy handler
func NewTaxonomyHandler(db *gorm.DB, sourceURL string) *TaxonomyHandler {
	return &TaxonomyHandler{
		taxonomyService: service.NewTaxonomyService(db, sourceURL),
	}
}

// GetLeaves returns the active deepest-level taxonomy nodes
func (h *TaxonomyHandler) GetLeaves(c echo.Context) error {
	leaves, err := h.taxonomyService.GetActiveLeaves()
	if err != nil {
		return response.ErrorResponse(c, http.StatusInternalServerError, "ServerException", err.Error())
	}
	return response.SuccessResponse(c, leaves)
}

// UpdateTaxonomy triggers a taxonomy refresh from the primary authority
func (h *TaxonomyHandler) UpdateTaxonomy(c echo.Context) error {
	rowsUpserted, err := h.taxonomyService.UpdateTaxonomy()
	if err != nil {
		return response.ErrorResponse(c, http.StatusInternalServerError, "ServerException", err.Error())
	}
	return response.SuccessResponse(c, map[string]int64{"rows_upserted": rowsUpserted})
}
