package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"adminpanel/internal/app"
	"adminpanel/internal/config"
	"adminpanel/internal/database"
	"adminpanel/internal/repositories"
	"adminpanel/internal/services"
	"adminpanel/pkg/logger"
	"adminpanel/pkg/password"
	"adminpanel/pkg/rabbitmq"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// --- Configuration ---
	// A missing .env file is fine; the environment still applies
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.NewLogger(cfg.AppName, cfg.Env)

	// --- Initialize Repository ---
	userRepo, closeRepo, err := openUserRepository(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize user repository")
	}
	defer closeRepo()
	log.WithField("driver", cfg.DBDriver).Info("user repository ready")

	// --- Initialize RabbitMQ Client ---
	var events services.EventPublisher
	if cfg.EventsEnabled() {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Queue: cfg.UserEventsQueue}, log)
		if err != nil {
			log.WithError(err).Fatal("failed to initialize RabbitMQ client")
		}
		defer mqClient.Close()
		events = mqClient

		// Audit consumer for user lifecycle events
		if err := mqClient.ConsumeUserEvents(rabbitmq.AuditHandler(log)); err != nil {
			log.WithError(err).Error("failed to start user event consumer")
		}
	} else {
		log.Info("RABBITMQ_URL not set, user events disabled")
	}

	// --- Initialize Services ---
	hasher := password.NewBcryptHasher(cfg.BcryptCost)
	userService := services.NewUserService(userRepo, hasher, events, log)
	authService := services.NewAuthService(userRepo, hasher, cfg.JWTSecret, cfg.JWTTTL, log)

	if cfg.SeedAdmin() {
		if err := seedAdmin(context.Background(), userService, cfg, log); err != nil {
			log.WithError(err).Fatal("failed to seed admin user")
		}
	}

	// --- Initialize Fiber App ---
	server := app.New(app.Options{
		AppName:       cfg.AppName,
		RoutePrefix:   cfg.RoutePrefix,
		Users:         userService,
		Auth:          authService,
		Logger:        log,
		EventsEnabled: events != nil,
	})

	// --- Start HTTP Server ---
	log.WithField("port", cfg.AppPort).Info("starting server")

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Listen(cfg.AppPort); err != nil {
			log.WithError(err).Fatal("server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-quit
	log.Info("shutting down server")

	if err := server.Shutdown(); err != nil {
		log.WithError(err).Error("error during Fiber shutdown")
	}
	log.Info("server gracefully stopped")
}

// openUserRepository selects the user store for cfg.DBDriver. The returned
// close function is always non-nil.
func openUserRepository(cfg *config.Config) (repositories.UserRepository, func(), error) {
	if cfg.DBDriver == "memory" {
		return repositories.NewMockUserRepository(), func() {}, nil
	}

	db, err := database.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	return repositories.NewGORMUserRepository(db), func() { _ = sqlDB.Close() }, nil
}

// seedAdmin makes sure the configured admin account exists.
func seedAdmin(ctx context.Context, users *services.UserService, cfg *config.Config, log *logrus.Logger) error {
	created, err := users.EnsureUser(ctx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		return err
	}
	if created {
		log.WithField("email", cfg.AdminEmail).Info("admin user created")
	}
	return nil
}
