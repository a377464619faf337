package server

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"

	"ollama-chat-be/internal/bootstrap"
	"ollama-chat-be/internal/config"
	"ollama-chat-be/internal/pkg/serverutils"
	"ollama-chat-be/pkg/apperror"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	app := fiber.New(fiber.Config{
		AppName:      "ollama-chat-be",
		BodyLimit:    cfg.App.BodyLimitMB * 1024 * 1024,
		ErrorHandler: serverutils.ErrorHandler(container.Logger),
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CorsAllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, X-Session-Id",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		ExposeHeaders:    "Content-Length, Content-Type, X-Session-Id",
	}))

	// OpenTelemetry tracing middleware (traces all HTTP requests)
	app.Use(otelfiber.Middleware())

	// Routes
	registerRoutes(app, container)

	// Client build, with index.html as the fallback for client-side routes
	app.Static("/", cfg.App.StaticDir)
	app.Get("/*", spaFallback(cfg.App.StaticDir))

	return &Server{
		app:       app,
		cfg:       cfg,
		container: container,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	log.Printf("Server is running on http://localhost:%s", s.cfg.App.Port)
	return s.app.Listen(":" + s.cfg.App.Port)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func registerRoutes(app *fiber.App, c *bootstrap.Container) {
	api := app.Group("/api")
	api.Use(serverutils.ErrorHandlerMiddleware(c.Logger))
	api.Use(serverutils.SessionMiddleware)

	c.SessionController.RegisterRoutes(api)
	c.ChatController.RegisterRoutes(api)
	c.CharacterController.RegisterRoutes(api)
	c.ModelController.RegisterRoutes(api)
	c.DownloadController.RegisterRoutes(api)

	api.Use(func(ctx *fiber.Ctx) error {
		return apperror.NotFound("Route %s %s not found", ctx.Method(), ctx.Path())
	})
}

func spaFallback(staticDir string) fiber.Handler {
	index := filepath.Join(staticDir, "index.html")
	return func(ctx *fiber.Ctx) error {
		if _, err := os.Stat(index); errors.Is(err, os.ErrNotExist) {
			return ctx.Status(fiber.StatusNotFound).
				Type("html").
				SendString("<h1>Client build not found</h1><p>Build the web client into " + staticDir + " and restart the server.</p>")
		}
		return ctx.SendFile(index)
	}
}
