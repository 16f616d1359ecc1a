package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OFFIS-RIT/c4designer/internal/bootstrap"
	"github.com/OFFIS-RIT/c4designer/internal/queue"
	mid "github.com/OFFIS-RIT/c4designer/internal/server/middleware"
	"github.com/OFFIS-RIT/c4designer/internal/storage"
	"github.com/OFFIS-RIT/c4designer/internal/util"
	"github.com/OFFIS-RIT/c4designer/pkg/assistant"
	"github.com/OFFIS-RIT/c4designer/pkg/document"
	"github.com/OFFIS-RIT/c4designer/pkg/logger"
	storepgx "github.com/OFFIS-RIT/c4designer/pkg/store/pgx"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// New returns an echo instance serving every route on app.
func New(app *mid.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(util.GetEnvString("BODY_LIMIT", "2M")))

	RegisterRoutes(e)
	return e
}

// Init wires the API from the environment and serves until SIGINT or
// SIGTERM.
func Init() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	keyfunc, err := mid.NewKeyfunc(util.GetEnv("AUTH_URL"), util.GetEnv("AUTH_SECRET"))
	if err != nil {
		logger.Fatal("Failed to set up token verification", "err", err)
	}

	conn, err := bootstrap.NewDatabase(ctx)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()

	que, err := queue.Init()
	if err != nil {
		logger.Fatal("Failed to connect to queue", "err", err)
	}
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	if err := queue.SetupQueues(ch); err != nil {
		logger.Fatal("Failed to declare queues", "err", err)
	}

	s3, err := storage.NewS3Client(ctx)
	if err != nil {
		logger.Fatal("Failed to create S3 client", "err", err)
	}

	app := &mid.App{
		Store:     storepgx.NewProjectDBStorageWithConnection(conn),
		Queue:     ch,
		Objects:   s3,
		Pipeline:  bootstrap.NewPipeline(),
		Documents: document.NewFetcher(nil),
		Keyfunc:   keyfunc,
	}

	chat, err := bootstrap.NewChatClient()
	if err != nil {
		logger.Fatal("Failed to create chat client", "err", err)
	}
	if chat != nil {
		app.Assistant = assistant.New(chat, bootstrap.AssistantOptions()...)
	} else {
		logger.Warn("AI_CHAT_MODEL not set, AI assistant disabled")
	}

	e := New(app)
	e.Use(middleware.RequestLogger())

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
