package main

import (
	"flag"
	"log"
	"os"

	"github.com/syedqaisarjalil/drl-forex-trading-internal/internal/di"
	"github.com/syedqaisarjalil/drl-forex-trading-internal/pkg/config"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s storage=%s symbols=%d", cfg.Environment, cfg.Storage.Backend, len(cfg.Symbols))

	// Wire DI: Initialize all dependencies
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
