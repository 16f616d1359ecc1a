package server

import (
	"github.com/OFFIS-RIT/c4designer/internal/server/middleware"
	"github.com/OFFIS-RIT/c4designer/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	e.GET("/health", routes.HealthHandler)

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Diagram routes
	apiRoutes.POST("/process", routes.ProcessHandler)
	apiRoutes.POST("/update-diagram", routes.UpdateDiagramHandler)
	apiRoutes.POST("/parse-plantuml", routes.ParsePlantUMLHandler)
	apiRoutes.POST("/ai-assistant", routes.AIAssistantHandler)

	// Project routes
	apiRoutes.GET("/projects", routes.GetProjectsHandler)
	apiRoutes.POST("/projects", routes.CreateProjectHandler)
	apiRoutes.GET("/projects/:id", routes.GetProjectHandler, middleware.RequireProject)
	apiRoutes.PATCH("/projects/:id", routes.EditProjectHandler, middleware.RequireProject)
	apiRoutes.DELETE("/projects/:id", routes.DeleteProjectHandler, middleware.RequireProject)
	apiRoutes.POST("/projects/:id/requirements/import", routes.ImportRequirementsHandler, middleware.RequireProject)
	apiRoutes.POST("/projects/:id/extract", routes.ExtractProjectHandler, middleware.RequireProject)
}
