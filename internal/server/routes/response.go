package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, errorResponse{Success: false, Error: msg})
}

func badRequest(c echo.Context) error {
	return fail(c, http.StatusBadRequest, "Invalid request body")
}

func internalError(c echo.Context) error {
	return fail(c, http.StatusInternalServerError, "Internal server error")
}

// bindAndValidate decodes the body into data and runs the struct validator.
func bindAndValidate(c echo.Context, data any) bool {
	if err := c.Bind(data); err != nil {
		return false
	}
	return c.Validate(data) == nil
}
