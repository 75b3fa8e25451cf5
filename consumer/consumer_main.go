package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/wwada/optiroute/config"
	"github.com/wwada/optiroute/consumer/worker"
	"github.com/wwada/optiroute/geocoder"
	infraPkg "github.com/wwada/optiroute/infra"
	"github.com/wwada/optiroute/input"
	"github.com/wwada/optiroute/optimizer"
	"github.com/wwada/optiroute/repository"
)

func main() {
	err := godotenv.Load(".env")
	if err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	cfg := config.NewConfig()
	infra, err := infraPkg.InitInfra(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize infrastructure: %v", err)
	}
	repo := repository.InitRepository(infra)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	geo := geocoder.New(infra.Redis, infra.Geocoding, cfg.EnvConfig.Geocode.CacheTTL, infra.Logger)
	routeOptimizer := optimizer.New(infra.Routing, infra.Routing, infra.Logger)
	inputResolver := input.NewResolver(infra.Minio)

	jobConsumer := worker.NewJobConsumer(infra.RabbitMQ.Channel, repo.JobRepo, inputResolver, geo, routeOptimizer, infra.Logger)
	if err := jobConsumer.Start(ctx); err != nil {
		infra.Logger.ErrorWithContextf(ctx, err, "Failed to start job consumer: %v", err)
		log.Fatalf("Failed to start job consumer: %v", err)
	}

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	infra.Logger.InfoWithContextf(ctx, "Shutting down consumer...")
	cancel()

	infra.RabbitMQ.Close()
	infra.Logger.Shutdown(context.Background())
}
