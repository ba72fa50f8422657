package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/skillatlas/ksagraph/internal/config"
	"github.com/skillatlas/ksagraph/internal/graph"
	"github.com/skillatlas/ksagraph/internal/logging"
	"github.com/skillatlas/ksagraph/internal/pipeline"
	"github.com/skillatlas/ksagraph/internal/server"
)

func main() {
	_ = godotenv.Load()

	log, err := logging.New(os.Getenv("APP_ENV"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal("load configuration", "path", cfgPath, "error", err)
	}

	driver, err := graph.NewBoltDriver(cfg.Graph, log)
	if err != nil {
		log.Fatal("connect to graph store", "error", err)
	}
	defer driver.Close(context.Background())

	if err := driver.EnsureConstraints(context.Background()); err != nil {
		log.Warn("ensure constraints", "error", err)
	}

	upserter := graph.NewUpserter(driver, log, cfg.Run.WriteRetries)
	runner := pipeline.NewRunner(cfg, upserter, log)

	r := server.NewServer(runner, log).SetupRouter()
	log.Info("starting server", "port", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatal("server exited", "error", err)
	}
}
