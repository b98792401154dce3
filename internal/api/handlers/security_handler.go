package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/quantbots/industrymapapi/internal/service"
	"github.com/quantbots/industrymapapi/pkg/utils/response"
)

// SecurityHandler serves the security universe endpoints
type SecurityHandler struct {
	securityService *service.SecurityService
}

// NewSecurityHandler creates a new security handler
func NewSecurityHandler(db *gorm.DB, sourceURL string) *SecurityHandler {
	return &SecurityHandler{
		securityService: service.NewSecurityService(db, sourceURL),
	}
}

// GetCount returns the number of securities in the registry
func (h *SecurityHandler) GetCount(c echo.Context) error {
	count, err := h.securityService.GetSecuritiesRecordCount()
	if err != nil {
		return response.ErrorResponse(c, http.StatusInternalServerError, "ServerException", err.Error())
	}
	return response.SuccessResponse(c, map[string]int64{"count": count})
}

// UpdateSecurities triggers a full-universe refresh
func (h *SecurityHandler) UpdateSecurities(c echo.Context) error {
	rowsInserted, err := h.securityService.UpdateSecurities()
	if err != nil {
		return response.ErrorResponse(c, http.StatusInternalServerError, "ServerException", err.Error())
	}
	return response.SuccessResponse(c, map[string]int64{"rows_inserted": rowsInserted})
}
