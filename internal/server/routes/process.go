package routes

import (
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/c4designer/internal/server/middleware"
	"github.com/OFFIS-RIT/c4designer/pkg/extract"
	"github.com/OFFIS-RIT/c4designer/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ProcessHandler runs the extraction pipeline on the posted text.
func ProcessHandler(c echo.Context) error {
	type processBody struct {
		Text string `json:"text" validate:"required"`
	}

	type processResponse struct {
		Success bool `json:"success"`
		*extract.ProcessResult
	}

	data := new(processBody)
	if !bindAndValidate(c, data) {
		return badRequest(c)
	}

	app := c.(*middleware.AppContext).App
	if app.Pipeline == nil {
		return fail(c, http.StatusServiceUnavailable, "Extraction is not available")
	}

	result, err := app.Pipeline.Process(c.Request().Context(), data.Text)
	if err != nil {
		logger.Error("[Server] Failed to process text", "err", err)
		status := http.StatusInternalServerError
		if errors.Is(err, extract.ErrInference) {
			status = http.StatusBadGateway
		}
		return fail(c, status, err.Error())
	}

	return c.JSON(http.StatusOK, processResponse{Success: true, ProcessResult: result})
}
