package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	AllowedOrigin string

	DatabaseURL             string
	DatabaseMaxOpenConns    int
	DatabaseMaxIdleConns    int
	DatabaseConnMaxLifetime time.Duration
	SaleMaxRetries          int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AuthSecret string
	SessionTTL time.Duration

	// ReportUTCOffsetHours fixes the calendar used for day, week, month and
	// year boundaries in reports.
	ReportUTCOffsetHours int

	BootstrapAdminEmail    string
	BootstrapAdminPassword string
	BootstrapAdminName     string
	BootstrapAdminSurname  string
	BootstrapAdminDocument string
}

func Load() Config {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg := Config{
		Port:                    getEnv("PORT", "8080"),
		AllowedOrigin:           getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		DatabaseMaxOpenConns:    getEnvInt("DATABASE_MAX_OPEN_CONNS", 30),
		DatabaseMaxIdleConns:    getEnvInt("DATABASE_MAX_IDLE_CONNS", 8),
		DatabaseConnMaxLifetime: getEnvDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		SaleMaxRetries:          getEnvInt("SALE_TX_MAX_RETRIES", 5),
		RedisAddr:               os.Getenv("REDIS_ADDR"),
		RedisPassword:           os.Getenv("REDIS_PASSWORD"),
		RedisDB:                 getEnvInt("REDIS_DB", 0),
		AuthSecret:              strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		SessionTTL:              getEnvDuration("SESSION_TTL", 8*time.Hour),
		ReportUTCOffsetHours:    getEnvInt("REPORT_UTC_OFFSET_HOURS", -5),
		BootstrapAdminEmail:     strings.ToLower(strings.TrimSpace(os.Getenv("BOOTSTRAP_ADMIN_EMAIL"))),
		BootstrapAdminPassword:  os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
		BootstrapAdminName:      strings.TrimSpace(getEnv("BOOTSTRAP_ADMIN_NAME", "Administrador")),
		BootstrapAdminSurname:   strings.TrimSpace(getEnv("BOOTSTRAP_ADMIN_SURNAME", "Principal")),
		BootstrapAdminDocument:  strings.TrimSpace(getEnv("BOOTSTRAP_ADMIN_DOCUMENT", "0000000000")),
	}

	if cfg.SessionTTL < time.Minute {
		cfg.SessionTTL = 8 * time.Hour
	}
	if cfg.SaleMaxRetries < 0 {
		cfg.SaleMaxRetries = 0
	}
	if cfg.ReportUTCOffsetHours < -12 || cfg.ReportUTCOffsetHours > 14 {
		log.Printf("[config] WARN: REPORT_UTC_OFFSET_HOURS=%d out of range, using -5", cfg.ReportUTCOffsetHours)
		cfg.ReportUTCOffsetHours = -5
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// ReportLocation returns the fixed zone reports are computed in.
func (c Config) ReportLocation() *time.Location {
	name := fmt.Sprintf("UTC%+d", c.ReportUTCOffsetHours)
	if c.ReportUTCOffsetHours == 0 {
		name = "UTC"
	}
	return time.FixedZone(name, c.ReportUTCOffsetHours*3600)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getEnvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		log.Printf("[config] WARN: invalid integer for %s, using default", key)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(val))
	if err != nil {
		log.Printf("[config] WARN: invalid duration for %s, using default", key)
		return fallback
	}
	return d
}
