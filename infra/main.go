package infra

import (
	"fmt"

	"github.com/wwada/optiroute/config"
	"github.com/wwada/optiroute/infra/produce"
)

type Infra struct {
	Redis     *RedisClient
	Postgres  *PostgresClient
	Logger    *LoggerClient
	RabbitMQ  *RabbitMQClient
	Minio     *MinioClient
	Geocoding *GeocodingService
	Routing   *RoutingService
	Produce   *produce.Produce
}

// InitInfra constructs every shared client. Callers own the returned
// handle and pass it down explicitly; there is no package-level instance.
func InitInfra(cfg *config.Config) (*Infra, error) {
	logger, err := InitLoggerClient(cfg.EnvConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	redis, err := InitRedisClient(cfg.EnvConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	postgres, err := InitPostgresClient(cfg.EnvConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres: %w", err)
	}

	rabbitMQ, err := InitRabbitMQClient(cfg.EnvConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	minio, err := InitMinioClient(cfg.EnvConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO: %w", err)
	}

	produceService, err := produce.InitProduce(rabbitMQ.Channel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize producers: %w", err)
	}

	return &Infra{
		Redis:     redis,
		Postgres:  postgres,
		Logger:    logger,
		RabbitMQ:  rabbitMQ,
		Minio:     minio,
		Geocoding: InitGeocodingService(cfg.EnvConfig),
		Routing:   InitRoutingService(cfg.EnvConfig),
		Produce:   produceService,
	}, nil
}
