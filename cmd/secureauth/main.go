package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/panyam/secureauth/internal/config"
	"github.com/panyam/secureauth/internal/logger"
	"github.com/panyam/secureauth/internal/server"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg, log.Logger)
	if err != nil {
		log.Fatal("failed to start", "err", err)
	}
	defer srv.Close()

	if err := srv.Run(ctx); err != nil {
		log.Error("server error", "err", err)
	}
}
