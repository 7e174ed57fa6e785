package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/ice9innovations/api/internal/api"
	"github.com/ice9innovations/api/internal/config"
)

func main() {
	setupLogging()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatalf("Failed to create upload directory %s: %v", cfg.UploadDir, err)
	}

	server := api.NewServer(cfg)
	router := api.SetupRouter(server)

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Infof("Animal Farm API listening on %s (%d analyzers)", addr, len(cfg.Analyzers))
	if err := router.Run(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// setupLogging configures the process-wide logger from LOG_LEVEL.
func setupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	parsed, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("Unknown LOG_LEVEL %q, using info", level)
		parsed = log.InfoLevel
	}
	log.SetLevel(parsed)
}
