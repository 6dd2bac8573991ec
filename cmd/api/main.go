package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"streakTracker/internal/app"
	"streakTracker/internal/config"
	"streakTracker/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config.yml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := app.New(cfg)
	if _, err := a.Init(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "init:", err)
		a.Shutdown()
		os.Exit(1)
	}

	if err := a.Run(ctx); err != nil {
		logger.Error("App: stopped with error", err)
		os.Exit(1)
	}
}
