package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tinysip/tinysip/internal/app"
	"github.com/tinysip/tinysip/internal/banner"
	"github.com/tinysip/tinysip/internal/config"
	"github.com/tinysip/tinysip/internal/logger"
)

func main() {
	cfg := config.Load()

	logger.InitLogger(os.Stdout)
	logger.SetLevel(cfg.LogLevel)

	banner.Print("TinySIP B2BUA", []banner.ConfigLine{
		{Label: "Bind", Value: fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.Port)},
		{Label: "Advertise", Value: cfg.AdvertiseAddr},
		{Label: "Workers", Value: fmt.Sprintf("%d", cfg.Workers)},
		{Label: "Queue capacity", Value: fmt.Sprintf("%d", cfg.QueueCapacity)},
		{Label: "Log level", Value: cfg.LogLevel},
	})

	srv, err := app.NewServer(cfg)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}
	defer srv.Close()

	run(srv, cfg)
}

func run(srv *app.Server, cfg *config.Config) {
	slog.Info("starting TinySIP", "port", cfg.Port, "advertise", cfg.AdvertiseAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := srv.Start(ctx); err != nil {
			slog.Error("server error", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	slog.Info("received signal, shutting down", "signal", sig)
	cancel()

	time.Sleep(500 * time.Millisecond)
}
