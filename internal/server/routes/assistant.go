package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/c4designer/internal/server/middleware"
	"github.com/OFFIS-RIT/c4designer/pkg/assistant"
	"github.com/OFFIS-RIT/c4designer/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AIAssistantHandler forwards an edit request and the current diagram to
// the chat model and returns the patched diagram.
func AIAssistantHandler(c echo.Context) error {
	type assistantBody struct {
		Action         string            `json:"action" validate:"required"`
		CurrentDiagram assistant.Diagram `json:"currentDiagram"`
		CurrentCode    string            `json:"currentCode"`
	}

	type assistantResponse struct {
		Success bool `json:"success"`
		*assistant.Response
	}

	data := new(assistantBody)
	if !bindAndValidate(c, data) {
		return badRequest(c)
	}

	app := c.(*middleware.AppContext).App
	if app.Assistant == nil {
		return fail(c, http.StatusServiceUnavailable, "AI assistant is not configured")
	}

	res, err := app.Assistant.Run(c.Request().Context(), data.Action, data.CurrentDiagram, data.CurrentCode)
	if err != nil {
		logger.Error("[Server] AI assistant failed", "err", err)
		return fail(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, assistantResponse{Success: true, Response: res})
}
