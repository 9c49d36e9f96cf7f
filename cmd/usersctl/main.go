package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"usersapp/internal/client/cli"
	"usersapp/internal/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	level := os.Getenv("USERSCTL_LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	logger := log.NewWithWriter(os.Stderr, "development", level)

	code := cli.Execute(ctx, os.Args[1:], logger)
	stop()
	os.Exit(code)
}
