package config

import (
	"os"
	"strconv"
	"time"
)

type EnvConfig struct {
	Postgres struct {
		Host     string
		Database string
		Username string
		Password string
		Port     string
	}
	Redis struct {
		Password string
		Database int
		Host     string
		Port     string
	}
	RabbitMQ struct {
		Host            string
		Port            string
		Username        string
		Password        string
		DialMaxAttempts int
	}
	Minio struct {
		Endpoint     string
		RootUser     string
		RootPassword string
		UploadBucket string
		UseSSL       bool
	}
	JWT struct {
		SecretKey string
	}
	CORS struct {
		AllowDomains string
	}
	TomTom struct {
		APIKey          string
		OptimizationURL string
		RoutingURL      string
		Timeout         time.Duration
	}
	Nominatim struct {
		BaseURL     string
		UserAgent   string
		CountryCode string
		MinInterval time.Duration
		Timeout     time.Duration
	}
	Geocode struct {
		CacheTTL time.Duration
	}
	Grafana struct {
		OTLPEndpoint string
		ServiceName  string
	}
	Environment struct {
		Mode string
	}
}

func LoadEnvConfig() *EnvConfig {
	var config EnvConfig

	// Postgres
	config.Postgres.Host = getEnv("POSTGRES_HOST", "localhost")
	config.Postgres.Port = getEnv("POSTGRES_PORT", "5432")
	config.Postgres.Database = getEnv("POSTGRES_DB", "optiroute")
	config.Postgres.Username = getEnv("POSTGRES_USER", "user")
	config.Postgres.Password = getEnv("POSTGRES_PASSWORD", "password")

	// Redis
	config.Redis.Host = getEnv("REDIS_HOST", "localhost")
	config.Redis.Port = getEnv("REDIS_PORT", "6379")
	config.Redis.Password = os.Getenv("REDIS_PASSWORD")
	config.Redis.Database, _ = strconv.Atoi(os.Getenv("REDIS_DB"))

	// RabbitMQ
	config.RabbitMQ.Host = getEnv("RABBITMQ_HOST", "localhost")
	config.RabbitMQ.Port = getEnv("RABBITMQ_PORT", "5672")
	config.RabbitMQ.Username = getEnv("RABBITMQ_USER", "guest")
	config.RabbitMQ.Password = getEnv("RABBITMQ_PASSWORD", "guest")
	config.RabbitMQ.DialMaxAttempts = getEnvInt("RABBITMQ_DIAL_MAX_ATTEMPTS", 8)

	// MinIO
	config.Minio.Endpoint = getEnv("MINIO_ENDPOINT", "localhost:9000")
	config.Minio.RootUser = getEnv("MINIO_ROOT_USER", "minioadmin")
	config.Minio.RootPassword = getEnv("MINIO_ROOT_PASSWORD", "minioadmin")
	config.Minio.UploadBucket = getEnv("MINIO_UPLOAD_BUCKET", "stop-uploads")
	config.Minio.UseSSL = os.Getenv("MINIO_USE_SSL") == "true"

	config.JWT.SecretKey = os.Getenv("JWT_SECRET_KEY")
	config.CORS.AllowDomains = os.Getenv("ALLOWED_DOMAINS")

	// TomTom
	config.TomTom.APIKey = os.Getenv("TOMTOM_API_KEY")
	config.TomTom.OptimizationURL = getEnv("TOMTOM_OPTIMIZATION_URL", "https://api.tomtom.com/routing/waypointoptimization/1")
	config.TomTom.RoutingURL = getEnv("TOMTOM_ROUTING_URL", "https://api.tomtom.com/routing/1/calculateRoute")
	config.TomTom.Timeout = getEnvDuration("TOMTOM_TIMEOUT", 30*time.Second)

	// Nominatim
	config.Nominatim.BaseURL = getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org/search")
	config.Nominatim.UserAgent = getEnv("NOMINATIM_USER_AGENT", "OptiRoute-Project")
	config.Nominatim.CountryCode = getEnv("NOMINATIM_COUNTRY_CODE", "pl")
	// Nominatim usage policy caps request rate at 1 req/s per client.
	config.Nominatim.MinInterval = getEnvDuration("NOMINATIM_MIN_INTERVAL", time.Second)
	config.Nominatim.Timeout = getEnvDuration("NOMINATIM_TIMEOUT", 10*time.Second)

	config.Geocode.CacheTTL = getEnvDuration("GEOCODE_CACHE_TTL", 24*time.Hour)

	// Grafana/OpenTelemetry
	config.Grafana.OTLPEndpoint = os.Getenv("GRAFANA_OTLP_ENDPOINT")
	config.Grafana.ServiceName = getEnv("SERVICE_NAME", "optiroute")

	config.Environment.Mode = getEnv("DEPLOY_ENV", "development")

	return &config
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}
