package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/c4designer/internal/server/middleware"

	"github.com/labstack/echo/v4"
)

func HealthHandler(c echo.Context) error {
	type healthResponse struct {
		Success     bool   `json:"success"`
		Status      string `json:"status"`
		ModelsReady bool   `json:"models_ready"`
	}

	app := c.(*middleware.AppContext).App
	ready := app.Pipeline != nil && app.Pipeline.Ready()
	return c.JSON(http.StatusOK, healthResponse{Success: true, Status: "ok", ModelsReady: ready})
}
