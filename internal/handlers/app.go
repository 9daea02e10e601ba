package handlers

import (
	"context"
	"time"

	"partshop/internal/database"
	"partshop/internal/middleware"
	"partshop/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AppDeps are the collaborators the HTTP surface is built from.
type AppDeps struct {
	DB     *gorm.DB
	Auth   *services.AuthService
	Tables *services.TableService
	Log    *zap.Logger
}

// NewApp builds the fiber app with the auth API, the row API and the ops
// endpoints.
func NewApp(d AppDeps) *fiber.App {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	app := fiber.New(fiber.Config{
		AppName:      "partshop",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.AccessLog(d.Log))
	app.Use(middleware.Metrics())

	NewAuthHandler(d.Auth, d.Log).RegisterRoutes(app)
	NewRestHandler(d.Tables, d.Auth, d.Log).RegisterRoutes(app)

	app.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := database.Ping(ctx, d.DB); err != nil {
			d.Log.Warn("health check failed", zap.Error(err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unhealthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		}
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	return app
}
