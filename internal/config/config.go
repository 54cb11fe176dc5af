package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort           string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
	LogLevel           string

	DB       DBConfig
	MongoURI string
	MongoDB  string

	RedisAddr     string
	RedisPassword string

	// KafkaBrokers is empty when order events should stay in the outbox table.
	KafkaBrokers []string
	KafkaTopic   string

	JWTSecret     string
	JWTExpiration time.Duration

	UploadDir          string
	StaticDir          string
	CORSAllowedOrigins []string

	Carrier CarrierConfig
}

type DBConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	MigrationsPath string
}

type CarrierConfig struct {
	BaseURL          string
	ClientID         string
	ClientSecret     string
	RedirectURL      string
	UserAgent        string
	OriginPostalCode string
	RequestTimeout   time.Duration
}

// Load reads a .env file when present (local development) and then the
// process environment.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			slog.Warn("could not load .env file", "error", err)
		}
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	maxBody, err := strconv.ParseInt(getEnv("MAX_REQUEST_BODY_SIZE", "10485760"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_REQUEST_BODY_SIZE: %w", err)
	}
	requestTimeout, err := getDuration("REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	jwtExpiration, err := getDuration("JWT_EXPIRES_IN", 72*time.Hour)
	if err != nil {
		return nil, err
	}
	carrierTimeout, err := getDuration("CARRIER_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		RequestTimeout:     requestTimeout,
		ShutdownTimeout:    shutdownTimeout,
		MaxRequestBodySize: maxBody,
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DB: DBConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           dbPort,
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			Name:           getEnv("DB_NAME", "brecho"),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "./internal/repository/migrations"),
		},
		MongoURI:           getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:            getEnv("MONGO_DB_NAME", "brecho"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:       splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "marketplace-orders"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		JWTExpiration:      jwtExpiration,
		UploadDir:          getEnv("UPLOAD_DIR", "./uploads"),
		StaticDir:          getEnv("STATIC_DIR", ""),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		Carrier: CarrierConfig{
			BaseURL:          strings.TrimRight(getEnv("CARRIER_BASE_URL", "https://sandbox.melhorenvio.com.br"), "/"),
			ClientID:         getEnv("CARRIER_CLIENT_ID", ""),
			ClientSecret:     getEnv("CARRIER_CLIENT_SECRET", ""),
			RedirectURL:      getEnv("CARRIER_REDIRECT_URL", "http://localhost:8080/api/shipping/callback"),
			UserAgent:        getEnv("CARRIER_USER_AGENT", "Brecho do Futuro (contato@brechodofuturo.com.br)"),
			OriginPostalCode: getEnv("CARRIER_ORIGIN_POSTAL_CODE", "01001000"),
			RequestTimeout:   carrierTimeout,
		},
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
