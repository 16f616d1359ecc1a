package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/c4designer/internal/queue"
	"github.com/OFFIS-RIT/c4designer/internal/server/middleware"
	"github.com/OFFIS-RIT/c4designer/internal/storage"
	"github.com/OFFIS-RIT/c4designer/pkg/logger"
	"github.com/OFFIS-RIT/c4designer/pkg/store"

	"github.com/labstack/echo/v4"
)

type projectResponse struct {
	Success bool           `json:"success"`
	Project *store.Project `json:"project"`
}

func GetProjectsHandler(c echo.Context) error {
	type projectsResponse struct {
		Success  bool            `json:"success"`
		Projects []store.Project `json:"projects"`
	}

	ac := c.(*middleware.AppContext)
	projects, err := ac.App.Store.ListProjects(c.Request().Context(), ac.User.UserID)
	if err != nil {
		logger.Error("[Server] Failed to list projects", "user_id", ac.User.UserID, "err", err)
		return internalError(c)
	}
	return c.JSON(http.StatusOK, projectsResponse{Success: true, Projects: projects})
}

func CreateProjectHandler(c echo.Context) error {
	type createProjectBody struct {
		Name         string `json:"name" validate:"required"`
		Requirements string `json:"requirements"`
	}

	data := new(createProjectBody)
	if !bindAndValidate(c, data) {
		return badRequest(c)
	}

	ac := c.(*middleware.AppContext)
	project, err := ac.App.Store.CreateProject(c.Request().Context(), ac.User.UserID, data.Name, data.Requirements)
	if err != nil {
		logger.Error("[Server] Failed to create project", "user_id", ac.User.UserID, "err", err)
		return internalError(c)
	}
	return c.JSON(http.StatusCreated, projectResponse{Success: true, Project: project})
}

func GetProjectHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, projectResponse{Success: true, Project: c.(*middleware.AppContext).Project})
}

func EditProjectHandler(c echo.Context) error {
	type editProjectBody struct {
		Name         *string `json:"name" validate:"omitempty,min=1"`
		Requirements *string `json:"requirements"`
	}

	data := new(editProjectBody)
	if !bindAndValidate(c, data) || (data.Name == nil && data.Requirements == nil) {
		return badRequest(c)
	}

	ac := c.(*middleware.AppContext)
	project, err := ac.App.Store.UpdateProject(c.Request().Context(), ac.Project.ID, store.UpdateProjectParams{
		Name:         data.Name,
		Requirements: data.Requirements,
	})
	if err != nil {
		logger.Error("[Server] Failed to update project", "project_id", ac.Project.ID, "err", err)
		return internalError(c)
	}
	return c.JSON(http.StatusOK, projectResponse{Success: true, Project: project})
}

func DeleteProjectHandler(c echo.Context) error {
	ac := c.(*middleware.AppContext)
	ctx := c.Request().Context()

	if err := ac.App.Store.DeleteProject(ctx, ac.Project.ID); err != nil {
		logger.Error("[Server] Failed to delete project", "project_id", ac.Project.ID, "err", err)
		return internalError(c)
	}
	if ac.App.Objects != nil {
		if err := storage.DeleteProjectArtifacts(ctx, ac.App.Objects, ac.Project.ID); err != nil {
			logger.Warn("[Server] Failed to delete project artifacts", "project_id", ac.Project.ID, "err", err)
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true})
}

// ExtractProjectHandler queues extraction of the project requirements.
func ExtractProjectHandler(c echo.Context) error {
	type extractResponse struct {
		Success       bool   `json:"success"`
		CorrelationID string `json:"correlation_id"`
	}

	ac := c.(*middleware.AppContext)
	if ac.App.Queue == nil {
		return fail(c, http.StatusServiceUnavailable, "Extraction queue is not available")
	}
	if ac.Project.Requirements == "" {
		return fail(c, http.StatusBadRequest, "Project has no requirements")
	}

	ctx := c.Request().Context()
	if err := ac.App.Store.SetStatus(ctx, ac.Project.ID, store.StatusPending, ""); err != nil {
		logger.Error("[Server] Failed to reset project status", "project_id", ac.Project.ID, "err", err)
		return internalError(c)
	}
	msg, err := queue.PublishExtract(ac.App.Queue, queue.ExtractJobMsg{ProjectID: ac.Project.ID})
	if err != nil {
		logger.Error("[Server] Failed to queue extraction", "project_id", ac.Project.ID, "err", err)
		return internalError(c)
	}
	return c.JSON(http.StatusAccepted, extractResponse{Success: true, CorrelationID: msg.CorrelationID})
}
