package middleware

import (
	"context"

	"github.com/OFFIS-RIT/c4designer/internal/queue"
	"github.com/OFFIS-RIT/c4designer/internal/storage"
	"github.com/OFFIS-RIT/c4designer/pkg/assistant"
	"github.com/OFFIS-RIT/c4designer/pkg/extract"
	"github.com/OFFIS-RIT/c4designer/pkg/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Pipeline is the extraction surface used by the handlers.
type Pipeline interface {
	Process(ctx context.Context, text string) (*extract.ProcessResult, error)
	Ready() bool
}

// Documents fetches requirement documents from the web.
type Documents interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// Assistant answers free-form diagram edit requests.
type Assistant interface {
	Run(ctx context.Context, action string, d assistant.Diagram, code string) (*assistant.Response, error)
}

type AppUser struct {
	UserID string
}

// App holds the shared dependencies of every request. Queue, Objects,
// Documents and Assistant are optional; routes needing a missing one answer
// 503.
type App struct {
	Store     store.ProjectStore
	Queue     queue.Channel
	Objects   storage.ObjectAPI
	Pipeline  Pipeline
	Assistant Assistant
	Documents Documents
	Keyfunc   jwt.Keyfunc
}

type AppContext struct {
	echo.Context
	App     *App
	User    *AppUser
	Project *store.Project
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return next(&AppContext{Context: c, App: app})
		}
	}
}
