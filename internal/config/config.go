package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	AppName string
	Env     string // development, staging, production
	AppPort string

	DBDriver    string // postgres, sqlite, memory
	DatabaseDSN string

	JWTSecret string
	JWTTTL    time.Duration

	BcryptCost int

	// RabbitMQ; an empty URL disables user events
	RabbitMQURL     string
	UserEventsQueue string

	RoutePrefix string

	// Initial admin, created on startup when both email and password are set
	AdminName     string
	AdminEmail    string
	AdminPassword string
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "adminpanel")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DATABASE_DSN", "host=127.0.0.1 user=postgres password=postgres dbname=adminpanel port=5432 sslmode=disable")
	v.SetDefault("JWT_SECRET", "change-me")
	v.SetDefault("JWT_TTL", 24*time.Hour)
	v.SetDefault("BCRYPT_COST", bcrypt.DefaultCost)
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("USER_EVENTS_QUEUE", "user_events")
	v.SetDefault("ADMIN_ROUTE_PREFIX", "admin")
	v.SetDefault("ADMIN_NAME", "Administrator")
	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("ADMIN_PASSWORD", "")
}

// Load reads configuration from the environment.
func Load() *Config {
	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		AppName: v.GetString("APP_NAME"),
		Env:     v.GetString("APP_ENV"),
		AppPort: v.GetString("APP_PORT"),

		DBDriver:    strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
		DatabaseDSN: v.GetString("DATABASE_DSN"),

		JWTSecret: v.GetString("JWT_SECRET"),
		JWTTTL:    v.GetDuration("JWT_TTL"),

		BcryptCost: v.GetInt("BCRYPT_COST"),

		RabbitMQURL:     strings.TrimSpace(v.GetString("RABBITMQ_URL")),
		UserEventsQueue: v.GetString("USER_EVENTS_QUEUE"),

		RoutePrefix: strings.Trim(v.GetString("ADMIN_ROUTE_PREFIX"), "/"),

		AdminName:     v.GetString("ADMIN_NAME"),
		AdminEmail:    strings.TrimSpace(v.GetString("ADMIN_EMAIL")),
		AdminPassword: v.GetString("ADMIN_PASSWORD"),
	}
}

// EventsEnabled reports whether a RabbitMQ URL was configured.
func (c *Config) EventsEnabled() bool {
	return c.RabbitMQURL != ""
}

// SeedAdmin reports whether an initial admin should be ensured on startup.
func (c *Config) SeedAdmin() bool {
	return c.AdminEmail != "" && c.AdminPassword != ""
}
