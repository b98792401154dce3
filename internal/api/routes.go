// Package api contains the API routes for the Industry Map API
package api

import (
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/quantbots/industrymapapi/internal/api/handlers"
	"github.com/quantbots/industrymapapi/internal/config"
	"github.com/quantbots/industrymapapi/pkg/utils/response"
)

// SetupRoutes configures the routes for the API
func SetupRoutes(e *echo.Echo, cfg *config.Config, db *gorm.DB, redisClient *redis.Client) {

	// Create a group for all API routes
	api := e.Group("/api")

	// Index route
	api.GET("/", func(c echo.Context) error {
		message := fmt.Sprintf("%s %s", cfg.APIName, cfg.APIVersion)
		return response.SuccessResponse(c, message)
	})

	// Mapping routes
	mappingHandler := handlers.NewMappingHandler(db, redisClient)
	mappingGroup := api.Group("/mappings")
	mappingGroup.GET("", mappingHandler.QueryMappings)
	mappingGroup.GET("/statistics", mappingHandler.GetStatistics)

	// Reconcile routes
	reconcileHandler := handlers.NewReconcileHandler(cfg, db, redisClient)
	reconcileGroup := api.Group("/reconcile")
	reconcileGroup.POST("/run", reconcileHandler.TriggerRun)
	reconcileGroup.GET("/lastrun", reconcileHandler.GetLastRun)

	// Taxonomy routes
	taxonomyHandler := handlers.NewTaxonomyHandler(db, cfg.TaxonomySourceURL)
	taxonomyGroup := api.Group("/taxonomy")
	taxonomyGroup.GET("/leaves", taxonomyHandler.GetLeaves)
	taxonomyGroup.POST("/update", taxonomyHandler.UpdateTaxonomy)

	// Security routes
	securityHandler := handlers.NewSecurityHandler(db, cfg.SecuritySourceURL)
	securityGroup := api.Group("/securities")
	securityGroup.GET("/count", securityHandler.GetCount)
	securityGroup.POST("/update", securityHandler.UpdateSecurities)

}
