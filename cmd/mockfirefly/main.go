package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ahmed-musallam/creative-automation-pipeline/internal/infra"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/mockfirefly"
)

func main() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	level, _ := infra.ParseLevel(os.Getenv("LOG_LEVEL"))
	logger := infra.NewLogger(cfg.AppEnv, level)

	addr := os.Getenv("MOCK_ADDR")
	if addr == "" {
		addr = ":9090"
	}
	srv := mockfirefly.New(mockfirefly.Options{
		ClientID:     cfg.FireflyClientID,
		ClientSecret: cfg.FireflyClientSecret,
		RunningPolls: envInt("MOCK_RUNNING_POLLS", 2),
		RateLimit:    envInt("MOCK_RATE_LIMIT", 0),
		Logger:       &logger,
	})
	server := infra.NewHTTPServer(addr, srv)

	go func() {
		logger.Info().
			Str("addr", addr).
			Str("token_path", mockfirefly.TokenPath).
			Msg("mock firefly listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}
