package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/quantbots/industrymapapi/internal/config"
	"github.com/quantbots/industrymapapi/internal/service"
	"github.com/quantbots/industrymapapi/pkg/utils/response"
)

// ReconcileHandler serves the reconciliation trigger and run report endpoints
type ReconcileHandler struct {
	reconcileService *service.ReconcileService
	mappingService   *service.MappingService
}

// NewReconcileHandler creates a new reconcile handler
func NewReconcileHandler(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *ReconcileHandler {
	return &ReconcileHandler{
		reconcileService: service.NewReconcileService(cfg, db, redisClient),
		mappingService:   service.NewMappingService(db, redisClient),
	}
}

// TriggerRun runs one reconciliation pass synchronously and returns its
// report. The run is tied to the request context, so a dropped client
// cancels remaining leaf processing; applied upserts stay in place.
func (h *ReconcileHandler) TriggerRun(c echo.Context) error {
	report, err := h.reconcileService.Run(c.Request().Context())
	if err != nil {
		return response.ErrorResponse(c, http.StatusInternalServerError, "ReconciliationException", err.Error())
	}
	return response.SuccessResponse(c, report)
}

// GetLastRun returns the most recently stored run report
func (h *ReconcileHandler) GetLastRun(c echo.Context) error {
	report, err := h.mappingService.GetLastRunReport()
	if err != nil {
		return response.ErrorResponse(c, http.StatusNotFound, "DataException", err.Error())
	}
	return response.SuccessResponse(c, report)
}
