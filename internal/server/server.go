package server

import (
	"log"

	"ai-videochat-be/internal/bootstrap"
	"ai-videochat-be/internal/config"
	"ai-videochat-be/internal/pkg/serverutils"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	app := fiber.New(fiber.Config{
		// Video uploads need headroom beyond Fiber's 4MB default.
		BodyLimit: (cfg.Upload.MaxFileSizeMB + 1) * 1024 * 1024,
	})

	// Middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CorsAllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization",
	}))

	// OpenTelemetry tracing middleware (traces all HTTP requests)
	app.Use(otelfiber.Middleware())

	app.Use(serverutils.ErrorHandlerMiddleware())

	app.Get("/health", func(ctx *fiber.Ctx) error {
		dbStatus := "ok"
		if sqlDB, err := container.DB.DB(); err != nil || sqlDB.PingContext(ctx.Context()) != nil {
			dbStatus = "unavailable"
		}
		redisStatus := "ok"
		if err := container.Redis.Ping(ctx.Context()).Err(); err != nil {
			redisStatus = "unavailable"
		}

		status := "ok"
		code := fiber.StatusOK
		if dbStatus != "ok" || redisStatus != "ok" {
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}
		return ctx.Status(code).JSON(fiber.Map{
			"status":   status,
			"database": dbStatus,
			"redis":    redisStatus,
		})
	})

	// Routes
	registerRoutes(app, container)

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

func registerRoutes(app *fiber.App, c *bootstrap.Container) {
	api := app.Group("/api")

	c.AuthController.RegisterRoutes(api)
	c.ChatbotController.RegisterRoutes(api)
	c.AnalysisController.RegisterRoutes(api)

	c.NotificationHandler.RegisterRoutes(api)
}
