package main

import (
	"context"

	"modelarena/internal/config"
	logpkg "modelarena/internal/log"
	"modelarena/internal/server"
	"modelarena/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	dotenvErr := godotenv.Load()

	logger := logpkg.CreateLogger()
	defer func() { _ = logger.Close() }()

	if dotenvErr != nil {
		logger.Warn("No .env file found, using system environment variables")
	}
	logger.Info("Logger initialized")

	cfg, err := config.LoadServerConfigFromEnv(logger)
	if err != nil {
		logger.Fatal("Failed to load server configuration: %v", err)
	}

	statsStorage := storage.InitStorage(context.Background(), cfg.RedisURL, cfg.StatsFilePath, cfg.Arena.KeyPrefix, logger)
	defer func() { _ = statsStorage.Close() }()

	cfg.Storage = statsStorage
	cfg.Logger = logger

	srv, err := server.NewServer(cfg)
	if err != nil {
		logger.Fatal("Failed to create server: %v", err)
	}
	defer func() { _ = srv.Close() }()

	if err := srv.Run(); err != nil {
		logger.Fatal("Server error: %v", err)
	}
}
