package app

import (
	"errors"
	"time"

	"adminpanel/internal/handlers"
	"adminpanel/internal/middleware"
	"adminpanel/internal/services"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

// Options wires the services into the HTTP surface.
type Options struct {
	AppName       string
	RoutePrefix   string
	Users         *services.UserService
	Auth          *services.AuthService
	Logger        *logrus.Logger
	EventsEnabled bool
}

// New builds the Fiber app: health check, admin login and the protected
// user routes under /<RoutePrefix>.
func New(opts Options) *fiber.App {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	app := fiber.New(fiber.Config{
		AppName:      opts.AppName,
		ErrorHandler: errorHandler(log),
	})

	// --- Middleware ---
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{Output: log.Writer()}))

	// --- Health Check Endpoint ---
	app.Get("/health", func(c *fiber.Ctx) error {
		events := "disabled"
		if opts.EventsEnabled {
			events = "enabled"
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
			"events": events,
		})
	})

	prefix := "/" + opts.RoutePrefix
	if opts.RoutePrefix == "" {
		prefix = "/admin"
	}
	admin := app.Group(prefix)

	// Authentication routes (public)
	handlers.NewAuthHandler(opts.Auth, log).RegisterRoutes(admin)

	// Protected routes (require JWT authentication)
	protected := admin.Group("", middleware.AuthRequired(opts.Auth, log))
	handlers.NewUserCrudHandler(opts.Users, log).RegisterRoutes(protected)

	return app
}

func errorHandler(log *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal server error"
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		}
		if code >= fiber.StatusInternalServerError {
			log.WithError(err).WithField("path", c.Path()).Error("unhandled request error")
		}
		return c.Status(code).JSON(fiber.Map{
			"message": message,
		})
	}
}
