package main

import (
	"flag"
	"log"
	"os"

	"ZoneDesk/internal/di"
	"ZoneDesk/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	for _, w := range cfg.Warnings() {
		log.Printf("config warning: %s", w)
	}

	log.Printf("env=%s backend=%s symbols=%v port=%d", cfg.Environment, cfg.Backend.Type, cfg.Polygon.Symbols, cfg.Server.Port)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
