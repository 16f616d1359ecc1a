package routes

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/OFFIS-RIT/c4designer/internal/server/middleware"
	"github.com/OFFIS-RIT/c4designer/pkg/document"
	"github.com/OFFIS-RIT/c4designer/pkg/logger"
	"github.com/OFFIS-RIT/c4designer/pkg/store"

	"github.com/labstack/echo/v4"
)

// ImportRequirementsHandler replaces the project requirements with the text
// of an uploaded file (multipart field "file") or of a web page given as
// {"url": "..."}.
func ImportRequirementsHandler(c echo.Context) error {
	type importBody struct {
		URL string `json:"url" validate:"required,url"`
	}

	ac := c.(*middleware.AppContext)
	ctx := c.Request().Context()

	var (
		text   string
		source string
		err    error
	)
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, ferr := c.FormFile("file")
		if ferr != nil {
			return badRequest(c)
		}
		f, ferr := fh.Open()
		if ferr != nil {
			return badRequest(c)
		}
		defer f.Close()
		content, ferr := io.ReadAll(io.LimitReader(f, document.MaxDocumentSize+1))
		if ferr != nil {
			return badRequest(c)
		}
		source = fh.Filename
		text, err = document.Text(fh.Filename, content)
	} else {
		if ac.App.Documents == nil {
			return fail(c, http.StatusServiceUnavailable, "Document import is not available")
		}
		data := new(importBody)
		if !bindAndValidate(c, data) {
			return badRequest(c)
		}
		source = data.URL
		text, err = ac.App.Documents.Fetch(ctx, data.URL)
	}

	switch {
	case errors.Is(err, document.ErrTooLarge):
		return fail(c, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, document.ErrUnsupported), errors.Is(err, document.ErrEmpty):
		return fail(c, http.StatusBadRequest, err.Error())
	case err != nil:
		logger.Warn("[Server] Failed to import requirements", "project_id", ac.Project.ID, "source", source, "err", err)
		return fail(c, http.StatusBadGateway, err.Error())
	}

	project, err := ac.App.Store.UpdateProject(ctx, ac.Project.ID, store.UpdateProjectParams{Requirements: &text})
	if err != nil {
		logger.Error("[Server] Failed to update project", "project_id", ac.Project.ID, "err", err)
		return internalError(c)
	}
	logger.Info("[Server] Imported requirements", "project_id", ac.Project.ID, "source", source, "chars", len(text))
	return c.JSON(http.StatusOK, projectResponse{Success: true, Project: project})
}
