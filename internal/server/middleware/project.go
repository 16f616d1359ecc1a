package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/OFFIS-RIT/c4designer/pkg/logger"
	"github.com/OFFIS-RIT/c4designer/pkg/store"

	"github.com/labstack/echo/v4"
)

// RequireProject loads the project named by the :id path parameter into the
// context. Projects of other users are reported as missing.
func RequireProject(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ac := c.(*AppContext)
		if ac.User == nil {
			return c.JSON(http.StatusUnauthorized, map[string]any{"success": false, "error": "Unauthorized"})
		}

		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]any{"success": false, "error": "Invalid project id"})
		}

		project, err := ac.App.Store.GetProject(c.Request().Context(), id)
		if errors.Is(err, store.ErrNotFound) || (err == nil && project.UserID != ac.User.UserID) {
			return c.JSON(http.StatusNotFound, map[string]any{"success": false, "error": "Project not found"})
		}
		if err != nil {
			logger.Error("[Server] Failed to load project", "project_id", id, "err", err)
			return c.JSON(http.StatusInternalServerError, map[string]any{"success": false, "error": "Internal server error"})
		}

		ac.Project = project
		return next(c)
	}
}
