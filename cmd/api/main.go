package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"

	"github.com/devrim/slipway/internal/adapters/builder"
	"github.com/devrim/slipway/internal/adapters/docker"
	"github.com/devrim/slipway/internal/adapters/http"
	"github.com/devrim/slipway/internal/adapters/store"
	"github.com/devrim/slipway/internal/buildcache"
	"github.com/devrim/slipway/internal/config"
	"github.com/devrim/slipway/internal/launch"
	"github.com/devrim/slipway/internal/logging"
)

func main() {
	// 1. Configuration and logging
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data dir: %v", err)
	}

	// 2. Persistence (build cache index + deployment records)
	cache, err := buildcache.OpenIndex(filepath.Join(cfg.DataDir, "buildcache.db"))
	if err != nil {
		log.Fatalf("Failed to open build cache: %v", err)
	}
	defer cache.Close()

	deployments, err := store.Open(filepath.Join(cfg.DataDir, "deployments.db"))
	if err != nil {
		log.Fatalf("Failed to open deployment store: %v", err)
	}
	defer deployments.Close()

	// 3. Adapters (infrastructure)
	dockerAdapter, err := docker.NewAdapter()
	if err != nil {
		log.Fatalf("Failed to initialize Docker adapter: %v", err)
	}
	builderAdapter, err := builder.NewBuilderAdapter(cache)
	if err != nil {
		log.Fatalf("Failed to initialize builder adapter: %v", err)
	}

	// 4. Core services and handlers
	launcher := launch.NewLauncher(dockerAdapter, deployments)
	handler := http.NewDeploymentHandler(builderAdapter, launcher, dockerAdapter, cfg.EnvPort)

	// 5. Routes
	app := fiber.New()
	api := app.Group("/api")
	v1 := api.Group("/v1")

	v1.Post("/builds", handler.Build)
	v1.Get("/containers", handler.ListContainers)

	d := v1.Group("/deployments")
	d.Post("/", handler.Deploy)
	d.Get("/", handler.ListDeployments)
	d.Delete("/:id", handler.StopDeployment)
	d.Get("/:id/logs", handler.GetDeploymentLogs)

	// 6. Start server
	log.Printf("Server starting on %s", cfg.ListenAddr)
	if err := app.Listen(cfg.ListenAddr); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
