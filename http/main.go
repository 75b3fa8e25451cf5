package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/wwada/optiroute/config"
	"github.com/wwada/optiroute/http/controller"
	routes "github.com/wwada/optiroute/http/route"
	infraPkg "github.com/wwada/optiroute/infra"
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

	ctrl := controller.NewController(cfg, infra, repo)

	router := routes.SetupRouter(ctrl)

	log.Println("HTTP Server started on :8080")
	if err := router.Run(":8080"); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
