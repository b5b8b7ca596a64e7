package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/localserve/service-booking/internal/platform/database"
)

// Config holds all service configuration, loaded from the environment with
// the BOOKING_ prefix (BOOKING_PORT, BOOKING_DB_HOST, ...).
type Config struct {
	Port   string
	AppEnv string

	DB database.PostgresConfig

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	KafkaBrokers  []string
	ConsumerGroup string

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPPassword string
	OpsEmail     string

	CatalogURL   string
	DirectoryURL string
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BOOKING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "bookings")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("REFRESH_TOKEN_TTL", "168h")

	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("CONSUMER_GROUP", "service-booking")

	v.SetDefault("CATALOG_URL", "http://localhost:8081")
	v.SetDefault("DIRECTORY_URL", "http://localhost:8082")

	cfg := &Config{
		Port:   v.GetString("PORT"),
		AppEnv: v.GetString("APP_ENV"),
		DB: database.PostgresConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		JWTSecret:       v.GetString("JWT_SECRET"),
		AccessTokenTTL:  v.GetDuration("ACCESS_TOKEN_TTL"),
		RefreshTokenTTL: v.GetDuration("REFRESH_TOKEN_TTL"),
		KafkaBrokers:    splitAndTrim(v.GetString("KAFKA_BROKERS")),
		ConsumerGroup:   v.GetString("CONSUMER_GROUP"),
		SMTPHost:        v.GetString("SMTP_HOST"),
		SMTPPort:        v.GetString("SMTP_PORT"),
		SMTPFrom:        v.GetString("SMTP_FROM"),
		SMTPPassword:    v.GetString("SMTP_PASSWORD"),
		OpsEmail:        v.GetString("OPS_EMAIL"),
		CatalogURL:      v.GetString("CATALOG_URL"),
		DirectoryURL:    v.GetString("DIRECTORY_URL"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("BOOKING_JWT_SECRET is required")
	}
	return cfg, nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
